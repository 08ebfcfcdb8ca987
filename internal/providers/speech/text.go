package speech

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// DecodeGBK converts engine output to UTF-8. Undecodable input is returned
// as is.
func DecodeGBK(b []byte) string {
	out, err := simplifiedchinese.GBK.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// EncodeGBK converts UTF-8 text to GBK, replacing characters GBK lacks.
func EncodeGBK(s string) []byte {
	out, err := encoding.ReplaceUnsupported(simplifiedchinese.GBK.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}

// DetectCharset returns the lower-cased best guess for data's charset.
func DetectCharset(data []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

func isGB(charset string) bool {
	switch charset {
	case "gb-18030", "gb18030", "gbk", "gb2312":
		return true
	}
	return false
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func validGBK(data []byte) bool {
	out, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
	return err == nil && !strings.ContainsRune(string(out), utf8.RuneError)
}

// NormalizeCustomText rewrites a custom text file as GBK, the encoding the
// engine reads. UTF-8 input is transcoded directly; anything else goes
// through charset detection. ASCII and GBK files are left alone.
// Reports whether the file was rewritten.
func NormalizeCustomText(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	if len(data) == 0 || isASCII(data) {
		return false, nil
	}

	var text string
	if utf8.Valid(data) {
		text = string(data)
	} else {
		if validGBK(data) {
			return false, nil
		}
		charset := DetectCharset(data)
		if isGB(charset) {
			return false, nil
		}
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return false, fmt.Errorf("unsupported charset %q in %s", charset, path)
		}
		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return false, fmt.Errorf("decode %s as %s: %w", path, charset, err)
		}
		text = string(decoded)
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, EncodeGBK(text), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("rewrite %s: %w", path, err)
	}
	return true, nil
}
