package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"dca-stake-agent/internal/config"
	"dca-stake-agent/internal/domain"
	"dca-stake-agent/internal/subtensor"
	"dca-stake-agent/internal/wallet"
)

// fakeClient serves canned chain state and counts Close calls.
type fakeClient struct {
	balance    float64
	balanceErr error
	subnets    []domain.SubnetInfo
	subnetsErr error
	closed     int
}

func (f *fakeClient) BlockNumber(context.Context) (uint64, error) { return 1000, nil }

func (f *fakeClient) AllSubnets(context.Context) ([]domain.SubnetInfo, error) {
	return f.subnets, f.subnetsErr
}

func (f *fakeClient) Balance(context.Context, string) (float64, error) {
	return f.balance, f.balanceErr
}

func (f *fakeClient) SubmitExtrinsic(context.Context, string) (bool, error) {
	return false, errors.New("fakeClient does not submit")
}

func (f *fakeClient) Close() error {
	f.closed++
	return nil
}

type fakeConnector struct {
	client *fakeClient
	err    error
}

func (f *fakeConnector) Connect(context.Context, string) (subtensor.Client, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

type fakeSigner struct{}

func (fakeSigner) Address() string               { return "5FakeColdkeyAddress" }
func (fakeSigner) Sign(p []byte) ([]byte, error) { return []byte("sig"), nil }

// fakeExecutor records whether the stake call happened.
type fakeExecutor struct {
	called   int
	included bool
	err      error
}

func (f *fakeExecutor) Stake(context.Context, subtensor.Client, wallet.Signer, string, int, float64) (bool, error) {
	f.called++
	return f.included, f.err
}

type fixture struct {
	cfg      *config.Config
	client   *fakeClient
	conn     *fakeConnector
	executor *fakeExecutor
	orch     *Orchestrator
}

func intPtr(v int) *int { return &v }

func newFixture(cfg *config.Config, client *fakeClient) *fixture {
	f := &fixture{
		cfg:      cfg,
		client:   client,
		conn:     &fakeConnector{client: client},
		executor: &fakeExecutor{included: true},
	}
	f.orch = New(Options{
		Config:    cfg,
		Connector: f.conn,
		Unlocker: UnlockerFunc(func(string) (wallet.Signer, error) {
			return fakeSigner{}, nil
		}),
		Executor: f.executor,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

func baseConfig() *config.Config {
	return &config.Config{
		WalletName:        "default",
		ValidatorHotkey:   "5FakeValidatorHotkey",
		StakeAmount:       1,
		MinLiquidityRatio: 10,
		Network:           "finney",
	}
}

// Scenario A: explicit target exists, liquidity healthy, dry run.
func TestRun_DryRunSuccess_NoExecution(t *testing.T) {
	cfg := baseConfig()
	cfg.TargetNetuid = intPtr(5)
	cfg.DryRun = true

	client := &fakeClient{
		balance: 10,
		subnets: []domain.SubnetInfo{
			{Netuid: 5, Name: "open", Price: "0.02", TaoIn: "100"},
		},
	}
	f := newFixture(cfg, client)

	outcome := f.orch.Run(context.Background())
	if outcome.Class != domain.ClassSuccess {
		t.Fatalf("expected Success, got %s (%s)", outcome.Class, outcome.Reason)
	}
	if f.executor.called != 0 {
		t.Errorf("dry run must not invoke the executor, got %d calls", f.executor.called)
	}
	if outcome.ExitCode() != 0 {
		t.Errorf("expected exit code 0, got %d", outcome.ExitCode())
	}
}

// Scenario B: low-liquidity whitelist entry is skipped in favor of a
// qualifying one; covered in selector tests, exercised here end to end.
func TestRun_WhitelistPicksQualifying(t *testing.T) {
	cfg := baseConfig()
	cfg.Whitelist = []int{3, 7}

	client := &fakeClient{
		balance: 10,
		subnets: []domain.SubnetInfo{
			{Netuid: 3, Name: "thin", Price: "0.01", TaoIn: "5", TaoInEmission: "9"},
			{Netuid: 7, Name: "deep", Price: "0.10", TaoIn: "50", TaoInEmission: "0.1"},
		},
	}
	f := newFixture(cfg, client)

	outcome := f.orch.Run(context.Background())
	if outcome.Class != domain.ClassSuccess {
		t.Fatalf("expected Success, got %s (%s)", outcome.Class, outcome.Reason)
	}
	if !strings.Contains(outcome.Reason, "subnet 7") {
		t.Errorf("expected stake on subnet 7, reason was %q", outcome.Reason)
	}
	if f.executor.called != 1 {
		t.Errorf("expected exactly one stake call, got %d", f.executor.called)
	}
}

// Scenario C: whitelist filters everything out → graceful skip, exit 0.
func TestRun_NoEligible_GracefulSkip(t *testing.T) {
	cfg := baseConfig()
	cfg.Whitelist = []int{9}

	client := &fakeClient{
		balance: 10,
		subnets: []domain.SubnetInfo{
			{Netuid: 9, Name: "dead", Price: "0", TaoIn: "100"},
		},
	}
	f := newFixture(cfg, client)

	outcome := f.orch.Run(context.Background())
	if outcome.Class != domain.ClassSkip {
		t.Fatalf("expected GracefulSkip, got %s (%s)", outcome.Class, outcome.Reason)
	}
	if outcome.ExitCode() != 0 {
		t.Errorf("graceful skip must exit 0, got %d", outcome.ExitCode())
	}
	if f.executor.called != 0 {
		t.Errorf("skip must not invoke the executor")
	}
}

// Scenario D: insufficient balance fails before any candidate resolution.
func TestRun_InsufficientBalance_FailsEarly(t *testing.T) {
	cfg := baseConfig()
	cfg.TargetNetuid = intPtr(5)

	client := &fakeClient{
		balance:    0.5, // need 1.01
		subnetsErr: errors.New("AllSubnets must not be called"),
	}
	f := newFixture(cfg, client)

	outcome := f.orch.Run(context.Background())
	if outcome.Class != domain.ClassFailure {
		t.Fatalf("expected Failure, got %s (%s)", outcome.Class, outcome.Reason)
	}
	if outcome.ExitCode() != 1 {
		t.Errorf("expected exit code 1, got %d", outcome.ExitCode())
	}
	if !strings.Contains(outcome.Reason, "insufficient balance") {
		t.Errorf("unexpected reason %q", outcome.Reason)
	}
}

func TestRun_ConnectionFailure(t *testing.T) {
	cfg := baseConfig()
	cfg.TargetNetuid = intPtr(5)

	f := newFixture(cfg, &fakeClient{})
	f.conn.err = errors.New("all networks down")

	outcome := f.orch.Run(context.Background())
	if outcome.Class != domain.ClassFailure {
		t.Fatalf("expected Failure, got %s", outcome.Class)
	}
	if f.client.closed != 0 {
		t.Errorf("nothing to release when connect failed, got %d closes", f.client.closed)
	}
}

func TestRun_UnlockFailure(t *testing.T) {
	cfg := baseConfig()
	cfg.TargetNetuid = intPtr(5)

	client := &fakeClient{balance: 10}
	f := newFixture(cfg, client)
	f.orch.unlocker = UnlockerFunc(func(string) (wallet.Signer, error) {
		return nil, errors.New("bad password")
	})

	outcome := f.orch.Run(context.Background())
	if outcome.Class != domain.ClassFailure {
		t.Fatalf("expected Failure, got %s", outcome.Class)
	}
	if client.closed != 1 {
		t.Errorf("connection must still be released once, got %d", client.closed)
	}
}

func TestRun_ExplicitTargetNotFound(t *testing.T) {
	cfg := baseConfig()
	cfg.TargetNetuid = intPtr(42)

	client := &fakeClient{
		balance: 10,
		subnets: []domain.SubnetInfo{{Netuid: 5, Price: "0.02", TaoIn: "100"}},
	}
	f := newFixture(cfg, client)

	outcome := f.orch.Run(context.Background())
	if outcome.Class != domain.ClassFailure {
		t.Fatalf("explicit-target miss must be fatal, got %s", outcome.Class)
	}
}

func TestRun_InvalidPriceFatal(t *testing.T) {
	cfg := baseConfig()
	cfg.TargetNetuid = intPtr(5)

	client := &fakeClient{
		balance: 10,
		subnets: []domain.SubnetInfo{{Netuid: 5, Price: "garbage", TaoIn: "100"}},
	}
	f := newFixture(cfg, client)

	outcome := f.orch.Run(context.Background())
	if outcome.Class != domain.ClassFailure {
		t.Fatalf("invalid price in explicit mode must be fatal, got %s", outcome.Class)
	}
}

func TestRun_LiquidityNotOK_Skips(t *testing.T) {
	cfg := baseConfig()
	cfg.TargetNetuid = intPtr(5)

	client := &fakeClient{
		balance: 10,
		subnets: []domain.SubnetInfo{{Netuid: 5, Price: "0.02", TaoIn: "3"}},
	}
	f := newFixture(cfg, client)

	outcome := f.orch.Run(context.Background())
	if outcome.Class != domain.ClassSkip {
		t.Fatalf("failed liquidity gate must skip, got %s (%s)", outcome.Class, outcome.Reason)
	}
	if f.executor.called != 0 {
		t.Errorf("skip must not invoke the executor")
	}
}

func TestRun_ExecutorReportsFailure(t *testing.T) {
	cfg := baseConfig()
	cfg.TargetNetuid = intPtr(5)

	client := &fakeClient{
		balance: 10,
		subnets: []domain.SubnetInfo{{Netuid: 5, Price: "0.02", TaoIn: "100"}},
	}
	f := newFixture(cfg, client)
	f.executor.included = false

	outcome := f.orch.Run(context.Background())
	if outcome.Class != domain.ClassFailure {
		t.Fatalf("executor returning false must fail, got %s", outcome.Class)
	}
}

func TestRun_ExecutorError(t *testing.T) {
	cfg := baseConfig()
	cfg.TargetNetuid = intPtr(5)

	client := &fakeClient{
		balance: 10,
		subnets: []domain.SubnetInfo{{Netuid: 5, Price: "0.02", TaoIn: "100"}},
	}
	f := newFixture(cfg, client)
	f.executor.err = errors.New("node rejected extrinsic")

	outcome := f.orch.Run(context.Background())
	if outcome.Class != domain.ClassFailure {
		t.Fatalf("executor error must fail, got %s", outcome.Class)
	}
}

// The connection is released exactly once for every terminal class.
func TestRun_ReleasesConnectionExactlyOnce(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*fixture)
		want    domain.Class
		subnets []domain.SubnetInfo
	}{
		{
			name:    "success",
			mutate:  func(*fixture) {},
			want:    domain.ClassSuccess,
			subnets: []domain.SubnetInfo{{Netuid: 5, Price: "0.02", TaoIn: "100"}},
		},
		{
			name:    "skip",
			mutate:  func(*fixture) {},
			want:    domain.ClassSkip,
			subnets: []domain.SubnetInfo{{Netuid: 5, Price: "0.02", TaoIn: "3"}},
		},
		{
			name:    "failure",
			mutate:  func(f *fixture) { f.executor.err = errors.New("boom") },
			want:    domain.ClassFailure,
			subnets: []domain.SubnetInfo{{Netuid: 5, Price: "0.02", TaoIn: "100"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.TargetNetuid = intPtr(5)

			client := &fakeClient{balance: 10, subnets: tc.subnets}
			f := newFixture(cfg, client)
			tc.mutate(f)

			outcome := f.orch.Run(context.Background())
			if outcome.Class != tc.want {
				t.Fatalf("expected %s, got %s (%s)", tc.want, outcome.Class, outcome.Reason)
			}
			if client.closed != 1 {
				t.Errorf("connection released %d times, want exactly 1", client.closed)
			}
		})
	}
}

var _ subtensor.Client = (*fakeClient)(nil)
