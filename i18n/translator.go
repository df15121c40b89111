package i18n

import "strings"

// Translator retrieves localized messages for Issue codes.
// data provides optional metadata to embed in the message (for example,
// "key" or "min"). Placeholders are written as {name}.
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

var catalogues = map[string]map[string]string{
	"en": {
		"required":                 "Please fill in this field",
		"pattern":                  "Invalid value",
		"invalid_address":          "Invalid address: {value}",
		"invalid_hex":              "Must be an hex string",
		"too_short":                "Length should be >= {min}",
		"too_long":                 "Length should be <= {max}",
		"unknown_type":             "unknown type: {name}",
		"key_not_found":            "key not found: {key}",
		"element_not_found":        "element {index} not found",
		"not_an_array":             "not an array",
		"not_a_dict":               "not a dict",
		"not_an_object":            "not an object",
		"missing_field_definition": "no field definition for key: {key}",
		"leaf_reached":             "leaf reached, remaining path: {path}",
		"missing_key":              "missing key: {key}",
		"not_writable":             "value is not writable",
		"duplicate_key":            "duplicate key: {key}",
	},
	"ja": {
		"required":                 "この項目を入力してください",
		"pattern":                  "値が不正です",
		"invalid_address":          "アドレスが不正です: {value}",
		"invalid_hex":              "16進文字列である必要があります",
		"too_short":                "長さは {min} 以上である必要があります",
		"too_long":                 "長さは {max} 以下である必要があります",
		"unknown_type":             "未知の型です: {name}",
		"key_not_found":            "キーが見つかりません: {key}",
		"element_not_found":        "要素 {index} が見つかりません",
		"not_an_array":             "配列ではありません",
		"not_a_dict":               "辞書ではありません",
		"not_an_object":            "オブジェクトではありません",
		"missing_field_definition": "キーのフィールド定義がありません: {key}",
		"leaf_reached":             "末端に到達しました。残りのパス: {path}",
		"missing_key":              "キーが不足しています: {key}",
		"not_writable":             "値は書き込みできません",
		"duplicate_key":            "キーが重複しています: {key}",
	},
}

func (t dictTranslator) Message(code string, data map[string]string) string {
	msg, ok := catalogues[t.lang][code]
	if !ok {
		return code
	}
	if len(data) == 0 {
		return msg
	}
	pairs := make([]string, 0, 2*len(data))
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

var currentTranslator Translator = dictTranslator{lang: "en"}

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	currentTranslator = dictTranslator{lang: lang}
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string { return currentTranslator.Message(code, data) }
