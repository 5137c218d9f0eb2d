package phoneme

import "strings"

// vocabulary is the model's fixed phoneme symbol table. Token values are the
// symbol's position in this list.
var vocabulary = []string{
	"<blank>", "<unk>", "AH0", "N", "T", "D", "S", "R", "L", "DH", "K", "Z", "IH1",
	"IH0", "M", "EH1", "W", "P", "AE1", "AH1", "V", "ER0", "F", ",", "AA1", "B",
	"HH", "IY1", "UW1", "IY0", "AO1", "EY1", "AY1", ".", "OW1", "SH", "NG", "G",
	"ER1", "CH", "JH", "Y", "AW1", "TH", "UH1", "EH2", "OW0", "EY2", "AO0", "IH2",
	"AE2", "AY2", "AA2", "UW0", "EH0", "OY1", "EY0", "AO2", "ZH", "OW2", "AE0", "UW2",
	"AH2", "AY0", "IY2", "AW2", "AA0", "\"", "ER2", "UH2", "?", "OY2", "!", "AW0",
	"UH0", "OY0", "..", "<sos/eos>",
}

var vocabularyIndex = buildVocabularyIndex()

func buildVocabularyIndex() map[string]int {
	index := make(map[string]int, len(vocabulary))
	for i, symbol := range vocabulary {
		index[symbol] = i
	}
	return index
}

// Tokens maps a phoneme string onto model token indices. Unknown symbols map
// to index 0, never to a negative value.
func Tokens(ptext string) []int {
	symbols := strings.Fields(ptext)
	tokens := make([]int, len(symbols))
	for i, symbol := range symbols {
		if idx, ok := vocabularyIndex[symbol]; ok {
			tokens[i] = idx
		}
	}
	return tokens
}

// VocabularySize reports the number of symbols in the model table.
func VocabularySize() int {
	return len(vocabulary)
}
