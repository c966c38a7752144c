package identity

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	passwordCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$*_"
	passwordLength  = 16
)

// GeneratePassword は管理者がパスワード無しでユーザーを作成する場合に
// IdP側アカウントへ設定するランダムなパスワードを生成する。
func GeneratePassword() (string, error) {
	max := big.NewInt(int64(len(passwordCharset)))
	b := make([]byte, passwordLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		b[i] = passwordCharset[n.Int64()]
	}
	return string(b), nil
}
