package orchestrator

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/habibuoy/VirtualAIAssistant/internal/bus"
	"github.com/habibuoy/VirtualAIAssistant/internal/protocol"
)

// BusNotifier publishes UI status and control affordances on the bus.
type BusNotifier struct {
	client *bus.Client
	log    *slog.Logger
}

func NewBusNotifier(client *bus.Client, log *slog.Logger) *BusNotifier {
	return &BusNotifier{client: client, log: log.With(slog.String("component", "ui-notifier"))}
}

func (n *BusNotifier) Status(evt protocol.UIStatus) {
	if err := n.client.PublishJSON(protocol.SubjectUIStatus, evt); err != nil {
		n.log.Warn("failed to publish ui status", slogError(err))
	}
}

func (n *BusNotifier) Controls(state protocol.ControlState) {
	if err := n.client.PublishJSON(protocol.SubjectUIControls, state); err != nil {
		n.log.Warn("failed to publish control state", slogError(err))
	}
}

func (n *BusNotifier) CaptureStart() {
	if err := n.client.Conn().Publish(protocol.SubjectCaptureStart, nil); err != nil {
		n.log.Warn("failed to publish capture start", slogError(err))
	}
}

func (n *BusNotifier) CaptureStop() {
	if err := n.client.Conn().Publish(protocol.SubjectCaptureStop, nil); err != nil {
		n.log.Warn("failed to publish capture stop", slogError(err))
	}
}

// Binding holds the orchestrator's inbound bus subscriptions.
type Binding struct {
	subs []*nats.Subscription
}

// BindBus subscribes the service to the UI and capture subjects. The
// pipeline itself stays bus-agnostic; handlers decode and delegate.
func (s *Service) BindBus(client *bus.Client) (*Binding, error) {
	conn := client.Conn()
	b := &Binding{}

	subTalk, err := conn.Subscribe(protocol.SubjectTalkToggle, func(*nats.Msg) {
		_ = s.ToggleTalk()
	})
	if err != nil {
		return nil, err
	}
	b.subs = append(b.subs, subTalk)

	subChunk, err := conn.Subscribe(protocol.SubjectCaptureChunk, func(msg *nats.Msg) {
		var chunk protocol.CaptureChunk
		if err := json.Unmarshal(msg.Data, &chunk); err != nil {
			s.log.Warn("invalid capture chunk", slogError(err))
			return
		}
		s.dispatchCapture(chunk)
	})
	if err != nil {
		b.Close()
		return nil, err
	}
	b.subs = append(b.subs, subChunk)

	subProvider, err := conn.Subscribe(protocol.SubjectProviderSelect, func(msg *nats.Msg) {
		var sel protocol.ProviderSelect
		if err := json.Unmarshal(msg.Data, &sel); err != nil {
			s.log.Warn("invalid provider selection", slogError(err))
			return
		}
		_ = s.SwitchProvider(sel.Name)
	})
	if err != nil {
		b.Close()
		return nil, err
	}
	b.subs = append(b.subs, subProvider)

	subMode, err := conn.Subscribe(protocol.SubjectSynthesisMode, func(msg *nats.Msg) {
		var mode protocol.SynthesisMode
		if err := json.Unmarshal(msg.Data, &mode); err != nil {
			s.log.Warn("invalid synthesis mode", slogError(err))
			return
		}
		_ = s.SetPreferRemote(mode.PreferRemote)
	})
	if err != nil {
		b.Close()
		return nil, err
	}
	b.subs = append(b.subs, subMode)

	return b, nil
}

// Close drains the subscriptions.
func (b *Binding) Close() {
	for _, sub := range b.subs {
		_ = sub.Drain()
	}
}
