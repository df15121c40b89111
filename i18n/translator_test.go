package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslator_DefaultAndJapanese(t *testing.T) {
	// default is en
	assert.Equal(t, "Please fill in this field", T("required", nil))

	SetLanguage("ja")
	assert.NotEqual(t, "Please fill in this field", T("required", nil))

	// reset to en
	SetLanguage("en")
}

func TestTranslator_Placeholders(t *testing.T) {
	assert.Equal(t, "Length should be >= 3", T("too_short", map[string]string{"min": "3"}))
	assert.Equal(t, "key not found: foo", T("key_not_found", map[string]string{"key": "foo"}))
	assert.Equal(t, "no_such_code", T("no_such_code", nil))
}

type upper struct{}

func (upper) Message(code string, _ map[string]string) string { return "X:" + code }

func TestTranslator_Custom(t *testing.T) {
	SetTranslator(upper{})
	defer SetTranslator(nil)
	assert.Equal(t, "X:required", T("required", nil))
}
