package payment

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/google/uuid"
)

var (
	cardDigits = regexp.MustCompile(`^[0-9]{12,19}$`)
	cvvDigits  = regexp.MustCompile(`^[0-9]{3,4}$`)
	expiryRe   = regexp.MustCompile(`^(0[1-9]|1[0-2])/([0-9]{2}|[0-9]{4})$`)
)

// ReferenceTokenizer は決済代行に渡す前提の参照トークンを発行する。
// カード番号とCVVは形式チェックにだけ使い、戻り値にも残さない。
type ReferenceTokenizer struct{}

func NewReferenceTokenizer() *ReferenceTokenizer {
	return &ReferenceTokenizer{}
}

func (t *ReferenceTokenizer) Tokenize(ctx context.Context, in usecase.PaymentInput) (model.PaymentRef, error) {
	number := normalizeCardNumber(in.CardNumber)
	if !cardDigits.MatchString(number) {
		return model.PaymentRef{}, fmt.Errorf("card number: %w", usecase.ErrInvalidPayment)
	}
	if cvv := strings.TrimSpace(in.CVV); cvv != "" && !cvvDigits.MatchString(cvv) {
		return model.PaymentRef{}, fmt.Errorf("cvv: %w", usecase.ErrInvalidPayment)
	}
	expiry := strings.TrimSpace(in.ExpiryDate)
	if expiry != "" && !expiryRe.MatchString(expiry) {
		return model.PaymentRef{}, fmt.Errorf("expiry date: %w", usecase.ErrInvalidPayment)
	}

	return model.PaymentRef{
		Token:          "tok_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Last4:          number[len(number)-4:],
		ExpiryDate:     expiry,
		CardholderName: strings.TrimSpace(in.CardholderName),
	}, nil
}

// スペースとハイフンを除く
func normalizeCardNumber(s string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(s))
}
