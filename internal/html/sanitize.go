// Package html keeps model output within the HTML subset Telegram accepts.
package html

import (
	"fmt"
	"io"
	"strings"

	"github.com/iamwavecut/tool"
	"golang.org/x/net/html"
)

// TelegramTags are the formatting tags the Bot API parses in HTML mode.
var TelegramTags = []string{"b", "i", "u", "s", "code", "pre", "tg-spoiler"}

// Sanitize escapes text and every tag not in allowedTags.
func Sanitize(input string, allowedTags []string) (string, error) {
	var output strings.Builder

	tokenizer := html.NewTokenizer(strings.NewReader(input))
	for {
		tokenType := tokenizer.Next()
		token := tokenizer.Token()

		switch tokenType {
		case html.ErrorToken:
			if tokenizer.Err() != io.EOF {
				return output.String(), tokenizer.Err()
			}
			return output.String(), nil
		case html.TextToken:
			output.WriteString(html.EscapeString(token.Data))
		case html.StartTagToken, html.EndTagToken:
			if tool.In(token.Data, allowedTags) {
				tag := token.String()
				tag = strings.ReplaceAll(tag, "&", "&amp;")
				output.WriteString(tag)
				continue
			}
			tag := token.Data
			if tokenType == html.EndTagToken {
				tag = "/" + tag
			}
			output.WriteString(fmt.Sprintf("&lt;%s&gt;", tag))
		case html.SelfClosingTagToken:
			if token.Data == "br" {
				output.WriteString("\n")
			}
		}
	}
}

func SanitizeTelegram(input string) (string, error) {
	return Sanitize(input, TelegramTags)
}

// Plain drops all markup and unescapes entities, for resending a message
// Telegram refused to parse.
func Plain(input string) string {
	var output strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(input))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return output.String()
		case html.TextToken:
			output.WriteString(tokenizer.Token().Data)
		case html.SelfClosingTagToken:
			if tokenizer.Token().Data == "br" {
				output.WriteString("\n")
			}
		}
	}
}
