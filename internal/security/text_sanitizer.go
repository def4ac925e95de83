// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はタスクのタイトル・説明やユーザー表示名などの
// プレーンテキスト入力からマークアップを除去する。
// 値はライブ配信でそのまま他クライアントへ届くため、保存前に適用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize は全てのHTMLタグを除去し、前後の空白を取り除いた文字列を返す。
	// script, styleタグは内容ごと除去される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのStrictPolicyはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はタグを除去したプレーンテキストを返す。
// StrictPolicyは&などをエスケープするため、JSONで返す前に元の文字へ戻す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
