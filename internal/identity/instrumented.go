package identity

import (
	"context"
	"time"
)

// CallRecorder はIdP呼び出しの結果とレイテンシを記録するインターフェース。
// metrics.Collectorが実装する。
type CallRecorder interface {
	RecordProviderCall(operation string, err error, duration time.Duration)
}

// InstrumentedProvider はProviderの各呼び出しを計測するデコレータ。
type InstrumentedProvider struct {
	next     Provider
	recorder CallRecorder
}

// NewInstrumentedProvider はInstrumentedProviderを生成する。
func NewInstrumentedProvider(next Provider, recorder CallRecorder) *InstrumentedProvider {
	return &InstrumentedProvider{next: next, recorder: recorder}
}

// VerifyIDToken は計測付きでトークンを検証する。
func (p *InstrumentedProvider) VerifyIDToken(ctx context.Context, idToken string) (*VerifiedToken, error) {
	start := time.Now()
	token, err := p.next.VerifyIDToken(ctx, idToken)
	p.recorder.RecordProviderCall("verify_id_token", err, time.Since(start))
	return token, err
}

// CreateAccount は計測付きでアカウントを作成する。
func (p *InstrumentedProvider) CreateAccount(ctx context.Context, params CreateAccountParams) (string, error) {
	start := time.Now()
	uid, err := p.next.CreateAccount(ctx, params)
	p.recorder.RecordProviderCall("create_account", err, time.Since(start))
	return uid, err
}

// UpdateAccount は計測付きでアカウントを更新する。
func (p *InstrumentedProvider) UpdateAccount(ctx context.Context, uid string, params UpdateAccountParams) error {
	start := time.Now()
	err := p.next.UpdateAccount(ctx, uid, params)
	p.recorder.RecordProviderCall("update_account", err, time.Since(start))
	return err
}

// DeleteAccount は計測付きでアカウントを削除する。
func (p *InstrumentedProvider) DeleteAccount(ctx context.Context, uid string) error {
	start := time.Now()
	err := p.next.DeleteAccount(ctx, uid)
	p.recorder.RecordProviderCall("delete_account", err, time.Since(start))
	return err
}

var _ Provider = (*InstrumentedProvider)(nil)
