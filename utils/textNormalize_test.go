package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "сайн байна уу", NormalizeText("  Сайн   байна уу?!! "))
	assert.Equal(t, "захиалга 1023", NormalizeText("ЗАХИАЛГА #1023"))
	// fullwidth digits fold under NFKC
	assert.Equal(t, "123", NormalizeText("１２３"))
	assert.Equal(t, "", NormalizeText("?!..."))
}

func TestSearchKeyFoldsVowels(t *testing.T) {
	assert.Equal(t, "хурэн гутал", SearchKey("Хүрэн", "гутал"))
	assert.Equal(t, "ногоон цамц", SearchKey("Ногоон цамц"))
	assert.Equal(t, SearchKey("өмд"), SearchKey("омд"))
}

func TestHasCyrillic(t *testing.T) {
	assert.True(t, HasCyrillic("hi сайн"))
	assert.False(t, HasCyrillic("sain baina uu"))
}
