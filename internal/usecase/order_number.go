package usecase

import (
	"fmt"
	"strings"
	"time"
)

// PREFIX-YYYYMMDD-TOKEN
// TOKENはUUIDv7の時刻部分12桁＋乱数部分8桁を大文字16進で並べたもの。
// 一意性は慣習上のもので、最終的にはorder_numberのユニーク制約で守る。
func NewOrderNumber(prefix string, now time.Time, id string) string {
	hex := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	token := hex
	if len(hex) == 32 {
		token = hex[:12] + hex[24:]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), token)
}
