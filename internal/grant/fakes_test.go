package grant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/embygate/embygate/internal/emby"
	"github.com/embygate/embygate/internal/identity"
	"github.com/embygate/embygate/internal/notification"
	"github.com/embygate/embygate/internal/store"
)

var errProviderDown = errors.New("provider down")

type fakeProvider struct {
	mu        sync.Mutex
	next      int
	accounts  map[string]string
	passwords map[string]string
	disabled  map[string]bool
	fail      map[string]error
	calls     []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts:  make(map[string]string),
		passwords: make(map[string]string),
		disabled:  make(map[string]bool),
		fail:      make(map[string]error),
	}
}

func (p *fakeProvider) failOn(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[op] = err
}

func (p *fakeProvider) record(op string) error {
	p.calls = append(p.calls, op)
	return p.fail[op]
}

func (p *fakeProvider) CreateAccount(_ context.Context, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("create"); err != nil {
		return "", err
	}
	p.next++
	id := fmt.Sprintf("acc-%d", p.next)
	p.accounts[id] = name
	return id, nil
}

func (p *fakeProvider) SetPassword(_ context.Context, accountID, password string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("set_password"); err != nil {
		return err
	}
	p.passwords[accountID] = password
	return nil
}

func (p *fakeProvider) ApplyDefaultPolicy(_ context.Context, accountID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("default_policy"); err != nil {
		return err
	}
	p.disabled[accountID] = false
	return nil
}

func (p *fakeProvider) ApplyBannedPolicy(_ context.Context, accountID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("banned_policy"); err != nil {
		return err
	}
	p.disabled[accountID] = true
	return nil
}

func (p *fakeProvider) AccountInfo(_ context.Context, accountID string) (emby.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("info"); err != nil {
		return emby.User{}, err
	}
	u := emby.User{ID: accountID, Name: p.accounts[accountID]}
	u.Policy.IsDisabled = p.disabled[accountID]
	return u, nil
}

func (p *fakeProvider) CountCatalog(context.Context) (emby.Counts, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("counts"); err != nil {
		return emby.Counts{}, err
	}
	return emby.Counts{MovieCount: 1, SeriesCount: 2, EpisodeCount: 3}, nil
}

type fakeRouter struct {
	lines    []emby.Line
	selected map[string]string
}

func (r *fakeRouter) Lines(context.Context) ([]emby.Line, error) {
	return r.lines, nil
}

func (r *fakeRouter) UserLine(_ context.Context, accountID string) (emby.Line, error) {
	for _, l := range r.lines {
		if l.Index == r.selected[accountID] {
			return l, nil
		}
	}
	return emby.Line{}, nil
}

func (r *fakeRouter) SelectLine(_ context.Context, accountID, index string) error {
	r.selected[accountID] = index
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (n *recordingNotifier) Send(_ context.Context, m notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, m)
	return nil
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.messages))
	for _, m := range n.messages {
		out = append(out, m.Kind)
	}
	return out
}

// failingBanStore makes the autocommit SetBan fail, to exercise divergence reporting.
type failingBanStore struct {
	store.Store
}

func (s failingBanStore) Repositories() store.Repositories {
	repos := s.Store.Repositories()
	repos.Identities = failingSetBan{repos.Identities}
	return repos
}

type failingSetBan struct {
	identity.Repository
}

func (failingSetBan) SetBan(context.Context, int64, time.Time, string) error {
	return errors.New("db unavailable")
}
