package channel_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/infra/adapter/persistence/memory"
	"notify-dispatch/internal/usecase/channel"
)

/*────────────────────  ヘルパ  ────────────────────*/

func newService() *channel.Service {
	return &channel.Service{Repo: memory.NewChannelRepo()}
}

func dingtalk(name string) *entity.ChannelConfig {
	return &entity.ChannelConfig{
		Name:    name,
		Enabled: true,
		Settings: &entity.DingTalkSettings{
			WebhookURL: "https://oapi.dingtalk.com/robot/send?access_token=" + name,
			Secret:     "SEC-" + name,
		},
	}
}

// failingRepo returns err from every method.
type failingRepo struct{ err error }

func (r failingRepo) Get(context.Context, entity.ChannelKey) (*entity.ChannelConfig, error) {
	return nil, r.err
}
func (r failingRepo) List(context.Context) ([]*entity.ChannelConfig, error) { return nil, r.err }
func (r failingRepo) Create(context.Context, *entity.ChannelConfig) error   { return r.err }
func (r failingRepo) Update(context.Context, *entity.ChannelConfig) error   { return r.err }
func (r failingRepo) SetEnabled(context.Context, entity.ChannelKey, bool) error {
	return r.err
}
func (r failingRepo) Delete(context.Context, entity.ChannelKey) error { return r.err }

/*────────────────────  テストケース  ────────────────────*/

func TestService_AddAndList(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	require.NoError(t, svc.Add(ctx, dingtalk("ops")))
	require.NoError(t, svc.Add(ctx, dingtalk("dev")))

	got, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	if diff := cmp.Diff([]*entity.ChannelConfig{dingtalk("ops"), dingtalk("dev")}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestService_Add_Duplicate(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	require.NoError(t, svc.Add(ctx, dingtalk("ops")))
	err := svc.Add(ctx, dingtalk("ops"))
	assert.ErrorIs(t, err, channel.ErrDuplicateConfig)

	// same name under another type is allowed
	other := &entity.ChannelConfig{Name: "ops", Settings: &entity.WeChatSettings{WebhookURL: "https://qyapi.weixin.qq.com/x"}}
	assert.NoError(t, svc.Add(ctx, other))
}

func TestService_Add_Invalid(t *testing.T) {
	svc := newService()
	cfg := dingtalk("ops")
	cfg.Settings.(*entity.DingTalkSettings).WebhookURL = "ftp://nope"

	err := svc.Add(context.Background(), cfg)
	require.ErrorIs(t, err, channel.ErrInvalidConfig)
	var ve *entity.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "dingtalk_webhook", ve.Field)

	list, _ := svc.List(context.Background())
	assert.Empty(t, list)
}

func TestService_Add_Guard(t *testing.T) {
	svc := &channel.Service{Repo: memory.NewChannelRepo(), Guard: channel.PublicTargetsOnly}
	cfg := &entity.ChannelConfig{Name: "local", Settings: &entity.WebhookSettings{URL: "http://127.0.0.1:9000/hook"}}

	err := svc.Add(context.Background(), cfg)
	require.ErrorIs(t, err, channel.ErrInvalidConfig)
	var ve *entity.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "webhook_url", ve.Field)

	// email has no HTTP endpoint
	mail := &entity.ChannelConfig{Name: "mail", Settings: &entity.EmailSettings{
		Host: "127.0.0.1", Port: 25, From: "a@example.com", To: []string{"b@example.com"},
	}}
	assert.NoError(t, svc.Add(context.Background(), mail))
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	require.NoError(t, svc.Add(ctx, dingtalk("ops")))

	next := dingtalk("ops")
	next.Enabled = false
	next.Settings.(*entity.DingTalkSettings).WebhookURL = "https://oapi.dingtalk.com/robot/send?access_token=new"
	next.Settings.(*entity.DingTalkSettings).Secret = entity.MaskedValue
	require.NoError(t, svc.Update(ctx, next))

	got, err := svc.Get(ctx, next.Key())
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	s := got.Settings.(*entity.DingTalkSettings)
	assert.Equal(t, "https://oapi.dingtalk.com/robot/send?access_token=new", s.WebhookURL)
	assert.Equal(t, "SEC-ops", s.Secret, "masked secret keeps the stored value")
}

func TestService_Update_Errors(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	err := svc.Update(ctx, dingtalk("ghost"))
	assert.ErrorIs(t, err, channel.ErrConfigNotFound)

	bad := dingtalk("ghost")
	bad.Name = ""
	err = svc.Update(ctx, bad)
	assert.ErrorIs(t, err, channel.ErrInvalidConfig)

	require.NoError(t, svc.Add(ctx, dingtalk("ops")))
	bad = dingtalk("ops")
	bad.Settings.(*entity.DingTalkSettings).WebhookURL = ""
	assert.ErrorIs(t, svc.Update(ctx, bad), channel.ErrInvalidConfig)
}

func TestService_SetEnabled(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	require.NoError(t, svc.Add(ctx, dingtalk("ops")))
	before, _ := svc.Get(ctx, dingtalk("ops").Key())

	require.NoError(t, svc.SetEnabled(ctx, before.Key(), false))
	after, _ := svc.Get(ctx, before.Key())

	before.Enabled = false
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("only enabled should change (-want +got):\n%s", diff)
	}

	err := svc.SetEnabled(ctx, entity.ChannelKey{Name: "ghost", Type: entity.ChannelEmail}, true)
	assert.ErrorIs(t, err, channel.ErrConfigNotFound)
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	require.NoError(t, svc.Add(ctx, dingtalk("ops")))

	key := dingtalk("ops").Key()
	require.NoError(t, svc.Delete(ctx, key))
	assert.ErrorIs(t, svc.Delete(ctx, key), channel.ErrConfigNotFound)

	_, err := svc.Get(ctx, key)
	assert.ErrorIs(t, err, channel.ErrConfigNotFound)
}

func TestService_OnChange(t *testing.T) {
	ctx := context.Background()
	var changed []entity.ChannelKey
	svc := newService()
	svc.OnChange = func(key entity.ChannelKey) { changed = append(changed, key) }
	key := dingtalk("ops").Key()

	require.NoError(t, svc.Add(ctx, dingtalk("ops")))
	require.NoError(t, svc.Update(ctx, dingtalk("ops")))
	require.NoError(t, svc.SetEnabled(ctx, key, false))
	require.NoError(t, svc.Delete(ctx, key))
	require.Error(t, svc.Delete(ctx, key))

	assert.Equal(t, []entity.ChannelKey{key, key, key}, changed, "add, update and delete only; failures are silent")
}

func TestService_RepositoryErrors(t *testing.T) {
	boom := errors.New("connection reset")
	svc := &channel.Service{Repo: failingRepo{err: boom}}
	ctx := context.Background()

	_, err := svc.List(ctx)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, svc.Add(ctx, dingtalk("a")), boom)
	assert.ErrorIs(t, svc.Update(ctx, dingtalk("a")), boom)
	assert.ErrorIs(t, svc.SetEnabled(ctx, dingtalk("a").Key(), true), boom)
	assert.ErrorIs(t, svc.Delete(ctx, dingtalk("a").Key()), boom)
}

func TestService_ListIsSnapshot(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	require.NoError(t, svc.Add(ctx, dingtalk("ops")))

	snap, _ := svc.List(ctx)
	require.NoError(t, svc.Add(ctx, dingtalk("dev")))
	snap[0].Name = "mutated"

	assert.Len(t, snap, 1)
	again, _ := svc.List(ctx)
	assert.Equal(t, "ops", again[0].Name)
}

func TestService_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.Add(ctx, dingtalk("same"))
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, channel.ErrDuplicateConfig):
			dup++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 19, dup)
}

func TestService_SupportedTypes(t *testing.T) {
	types := newService().SupportedTypes()
	assert.Len(t, types, 5)
}
