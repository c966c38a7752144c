package identity

import "context"

// DisabledProvider はIdP連携が未設定のときに使うProvider。
// 全操作がErrProviderDisabledを返すため、トークン検証は常に失敗し、
// アカウント作成・更新はInternalErrorとして呼び出し元に伝播する。
type DisabledProvider struct{}

// VerifyIDToken は常にErrProviderDisabledを返す。
func (DisabledProvider) VerifyIDToken(ctx context.Context, idToken string) (*VerifiedToken, error) {
	return nil, ErrProviderDisabled
}

// CreateAccount は常にErrProviderDisabledを返す。
func (DisabledProvider) CreateAccount(ctx context.Context, params CreateAccountParams) (string, error) {
	return "", ErrProviderDisabled
}

// UpdateAccount は常にErrProviderDisabledを返す。
func (DisabledProvider) UpdateAccount(ctx context.Context, uid string, params UpdateAccountParams) error {
	return ErrProviderDisabled
}

// DeleteAccount は常にErrProviderDisabledを返す。
func (DisabledProvider) DeleteAccount(ctx context.Context, uid string) error {
	return ErrProviderDisabled
}

var _ Provider = DisabledProvider{}
