package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/de-tools/kmp-audit/pkg/models/domain"
	"github.com/de-tools/kmp-audit/pkg/services/audit"
	"github.com/de-tools/kmp-audit/pkg/services/gather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGatherer struct {
	mock.Mock
}

func (m *mockGatherer) Package(ctx context.Context, target domain.Target) (domain.PackageFacts, error) {
	args := m.Called(ctx, target)
	return args.Get(0).(domain.PackageFacts), args.Error(1)
}

func (m *mockGatherer) Modules(ctx context.Context, target domain.Target) ([]domain.ModuleFacts, error) {
	args := m.Called(ctx, target)
	modules, _ := args.Get(0).([]domain.ModuleFacts)
	return modules, args.Error(1)
}

var _ gather.Gatherer = (*mockGatherer)(nil)

func newAnalyzer(t *testing.T) *audit.Analyzer {
	a, err := audit.NewAnalyzer(audit.DefaultSettings())
	require.NoError(t, err)
	return a
}

func cleanPackage(path string) domain.PackageFacts {
	return domain.PackageFacts{
		Name:             "acme-kmp-default",
		Path:             path,
		Vendor:           "Acme Networks",
		SignaturePresent: true,
		License:          "GPL",
		WeakModuleHook:   true,
		HardwarePatterns: []string{"pci:v000019A2d00000712*"},
		Modules: []domain.ModuleFacts{{
			Path:             "/lib/modules/acme.ko",
			License:          "GPL",
			SupportedFlags:   []string{"external"},
			SignaturePresent: true,
			Aliases:          []string{"pci:v000019A2d00000712sv*sd*bc*sc*i*"},
		}},
	}
}

func TestDriver_Run(t *testing.T) {
	ok1 := domain.Target{Kind: domain.TargetFile, Path: "/facts/b.json"}
	ok2 := domain.Target{Kind: domain.TargetFile, Path: "/facts/a.json"}
	down := domain.Target{Kind: domain.TargetRemote, Host: "node-2", Path: "/srv/c.rpm"}
	broken := domain.Target{Kind: domain.TargetFile, Path: "/facts/d.json"}

	g := new(mockGatherer)
	g.On("Package", mock.Anything, ok1).Return(cleanPackage(ok1.Path), nil)
	g.On("Package", mock.Anything, ok2).Return(cleanPackage(ok2.Path), nil)
	g.On("Package", mock.Anything, down).Return(domain.PackageFacts{}, errors.New("connection refused"))
	g.On("Package", mock.Anything, broken).
		Return(domain.PackageFacts{}, &domain.FactsError{Unit: broken.Path, Field: "name"})

	d := NewDriver(g, newAnalyzer(t), Config{Concurrency: 2})
	outcomes := Collect(d.Run(context.Background(), gather.Targets(ok1, down, ok2, broken)), true)

	require.Len(t, outcomes, 4)
	assert.Equal(t, []domain.Target{ok2, ok1, broken, down}, []domain.Target{
		outcomes[0].Target, outcomes[1].Target, outcomes[2].Target, outcomes[3].Target,
	})

	assert.Equal(t, domain.SeverityPass, outcomes[0].Severity())
	assert.Equal(t, domain.SeverityPass, outcomes[1].Severity())

	assert.True(t, outcomes[2].Malformed())
	assert.False(t, outcomes[2].Failed())
	assert.Equal(t, domain.SeverityError, outcomes[2].Severity())
	assert.Equal(t, "/facts/d.json", outcomes[2].Package.Path.Message)

	assert.True(t, outcomes[3].Failed())
	assert.Nil(t, outcomes[3].Package)
	assert.True(t, domain.IsGatherFailure(outcomes[3].Err))

	s := domain.Summarize(outcomes)
	assert.Equal(t, domain.Summary{Total: 4, Passed: 2, Errors: 1, Malformed: 1, Failed: 1}, s)
	assert.Equal(t, domain.SeverityError, s.Severity())
	g.AssertExpectations(t)
}

func TestDriver_Live(t *testing.T) {
	host := domain.Target{Kind: domain.TargetLive, Host: "node-1"}
	garbled := domain.Target{Kind: domain.TargetLive, Host: "node-3"}

	g := new(mockGatherer)
	g.On("Modules", mock.Anything, host).Return([]domain.ModuleFacts{
		{Path: "/lib/modules/z.ko", License: "GPL", SupportedFlags: []string{"yes"}, SignaturePresent: true, Running: true},
		{Path: "/lib/modules/a.ko", License: "GPL", SupportedFlags: []string{"external"}, SignaturePresent: false},
	}, nil)
	g.On("Modules", mock.Anything, garbled).Return(nil, fmt.Errorf("%w: unexpected token", domain.ErrMalformedFacts))

	d := NewDriver(g, newAnalyzer(t), Config{Concurrency: 1})
	outcomes := Collect(d.Run(context.Background(), gather.Targets(garbled, host)), true)
	require.Len(t, outcomes, 2)

	live := outcomes[0]
	require.Len(t, live.Modules, 2)
	assert.Equal(t, "/lib/modules/a.ko", live.Modules[0].Path)
	assert.Equal(t, domain.SeverityError, live.Modules[0].Severity(), "unsigned module")
	assert.Equal(t, domain.SeverityPass, live.Modules[1].Severity(), "in-house token passes on a live system")
	assert.Nil(t, live.Modules[1].Symbols)

	bad := outcomes[1]
	assert.False(t, bad.Failed())
	require.Len(t, bad.Modules, 1)
	assert.Equal(t, "node-3", bad.Modules[0].Path)
	assert.Equal(t, domain.SeverityError, bad.Severity())
}

func TestDriver_BoundedConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	g := new(mockGatherer)
	g.On("Package", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
		}).
		Return(domain.PackageFacts{}, errors.New("unreachable"))

	targets := make([]domain.Target, 12)
	for i := range targets {
		targets[i] = domain.Target{Kind: domain.TargetRemote, Host: fmt.Sprintf("node-%02d", i)}
	}

	d := NewDriver(g, newAnalyzer(t), Config{Concurrency: 3})
	outcomes := Collect(d.Run(context.Background(), gather.Targets(targets...)), false)

	assert.Len(t, outcomes, 12)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	for _, o := range outcomes {
		assert.True(t, o.Failed())
	}
}

func TestDriver_Timeout(t *testing.T) {
	slow := domain.Target{Kind: domain.TargetRemote, Host: "slow"}
	g := new(mockGatherer)
	g.On("Package", mock.Anything, slow).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(domain.PackageFacts{}, context.DeadlineExceeded)

	d := NewDriver(g, newAnalyzer(t), Config{Concurrency: 1, Timeout: 20 * time.Millisecond})
	outcome := d.Process(context.Background(), slow)
	assert.True(t, outcome.Failed())
	assert.ErrorIs(t, outcome.Err, context.DeadlineExceeded)
}

func TestDriver_Cancelled(t *testing.T) {
	g := new(mockGatherer)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	targets := make(chan domain.Target)
	d := NewDriver(g, newAnalyzer(t), DefaultConfig())
	outcomes := Collect(d.Run(ctx, targets), false)
	assert.Empty(t, outcomes)
	g.AssertNotCalled(t, "Package", mock.Anything, mock.Anything)
}
