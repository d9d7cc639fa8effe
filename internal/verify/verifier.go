package verify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"moveguard/internal/chain"
	"moveguard/internal/corroborate"
	"moveguard/internal/drift"
	"moveguard/internal/extract"
	"moveguard/internal/logger"
	"moveguard/internal/risk"
	"moveguard/internal/rules"
)

// privilegedNames flags function names whose phantom invocation is treated as
// confirmed hostile behavior.
var privilegedNames = []string{"mint", "burn", "admin", "upgrade", "freeze", "pause"}

// Sources bundles the external readers for one network. Fallback, secondary,
// indexer and sampler are optional; a missing source degrades the evidence
// tier instead of failing the pass.
type Sources struct {
	Primary   *chain.Client
	Fallback  *chain.Client
	Secondary *chain.Client
	Indexer   *chain.IndexerClient
	Sampler   *chain.Sampler
}

type Options struct {
	// SampleTransactions toggles behavior sampling. Monitor escalations run
	// with it off by default to bound per-run cost.
	SampleTransactions bool
	SampleLimit        int
	// ActivityLimit caps how many indexer activities are counted.
	ActivityLimit int
}

type Verifier struct {
	src       Sources
	allowList []string
}

func NewVerifier(src Sources, allowList []string) (*Verifier, error) {
	if src.Primary == nil {
		return nil, errors.New("a primary fullnode client is required")
	}
	return &Verifier{src: src, allowList: allowList}, nil
}

// sourceProbe is the all-settled result of one source's fetch branch.
type sourceProbe struct {
	label        string
	surface      *extract.MiniSurface
	caps         *extract.ModuleCapabilities
	modules      []chain.MoveModule
	moduleHashes map[string]string
	err          error
}

// Verify runs one full verification pass: parallel multi-source fetch,
// corroboration, static rules, optional behavior sampling and risk synthesis.
// It returns a complete report even when individual sources fail.
func (v *Verifier) Verify(ctx context.Context, target Target, opts Options) (*VerificationReport, error) {
	started := time.Now()
	report := &VerificationReport{
		ScanID:    uuid.NewString(),
		Target:    target,
		StartedAt: started.UTC(),
	}

	rpcClients := []*chain.Client{v.src.Primary, v.src.Fallback, v.src.Secondary}
	labels := []string{"primary", "fallback", "secondary"}
	probes := make([]sourceProbe, len(rpcClients))

	var indexerSurface *extract.MiniSurface
	var indexerErr error
	activityCount := 0

	var sampled []chain.SampledTx
	var sampleErr error
	sampleRequested := opts.SampleTransactions && v.src.Sampler != nil

	// All-settled fan-out: every branch records its own (value, error) pair
	// and returns nil, so one source's failure never cancels the others.
	var g errgroup.Group
	for i, client := range rpcClients {
		if client == nil {
			continue
		}
		i, client := i, client
		fetchModules := i < 2 // primary and fallback carry the code-hash comparison
		g.Go(func() error {
			probes[i] = v.probeRPC(ctx, client, labels[i], target, fetchModules)
			return nil
		})
	}
	if v.src.Indexer != nil && target.Kind != extract.KindCoin {
		g.Go(func() error {
			row, err := v.src.Indexer.GetFAMetadata(ctx, target.Address)
			if err != nil {
				indexerErr = err
				return nil
			}
			indexerSurface = extract.SurfaceFromIndexer("indexer", row)
			if n, err := v.src.Indexer.GetActivityCount(ctx, target.Address, opts.ActivityLimit); err == nil {
				activityCount = n
			}
			return nil
		})
	}
	if sampleRequested {
		g.Go(func() error {
			sampled, sampleErr = v.src.Sampler.Sample(ctx, []string{target.Address})
			return nil
		})
	}
	_ = g.Wait()

	// Reconcile the mini-surfaces.
	surfaces := make([]*extract.MiniSurface, 0, 4)
	answeredRPC := 0
	sourceErrors := map[string]string{}
	for i := range probes {
		if rpcClients[i] == nil {
			continue
		}
		if probes[i].surface != nil {
			surfaces = append(surfaces, probes[i].surface)
			answeredRPC++
		} else if probes[i].err != nil {
			sourceErrors[labels[i]] = probes[i].err.Error()
		}
	}
	indexerAnswered := indexerSurface != nil
	if indexerAnswered {
		surfaces = append(surfaces, indexerSurface)
	} else if indexerErr != nil && !errors.Is(indexerErr, chain.ErrNotFound) {
		sourceErrors["indexer"] = indexerErr.Error()
	}

	corr := corroborate.Corroborate(surfaces)
	tier := corroborate.TierFor(answeredRPC, indexerAnswered)

	// The best-answering RPC supplies the capability record and artifacts.
	var caps *extract.ModuleCapabilities
	var modules []chain.MoveModule
	for i := range probes {
		if probes[i].caps != nil {
			caps = probes[i].caps
			if len(probes[i].modules) > 0 {
				modules = probes[i].modules
			}
			break
		}
	}
	if caps == nil {
		caps = extract.EmptyCapabilities(target.Kind)
	}

	view, evidence, abi := buildArtifacts(target, modules)
	findings := rules.RunAll(&rules.Context{
		View:         view,
		Evidence:     evidence,
		Capabilities: caps,
		ABI:          abi,
		AllowList:    v.allowList,
	})

	var behavior *risk.Behavior
	if sampleRequested || indexerAnswered {
		behavior = buildBehavior(target, modules, sampled, sampleErr, sampleRequested, indexerAnswered, activityCount)
	}

	surface := risk.SurfaceFlags{
		MintReachable:   caps.MintRef || anyNameMatches(view.EntryFunctions, "mint"),
		BurnReachable:   caps.BurnRef || anyNameMatches(view.EntryFunctions, "burn"),
		AdminSurface:    hasFinding(findings, "unprotected-privileged-entry"),
		HookedDispatch:  len(caps.Hooks) > 0,
		OpaqueInterface: evidence.ViewOnly,
	}

	synthesis := risk.Synthesize(risk.Input{
		Claims:           corr,
		Tier:             tier,
		Findings:         findings,
		Behavior:         behavior,
		Surface:          surface,
		IndexerAvailable: indexerAnswered,
	})
	if target.Kind == extract.KindWallet {
		synthesis.Rationale = append(synthesis.Rationale,
			"wallet target verified under assumed fungible-asset semantics")
	}

	report.Tier = tier
	report.Status = corr.Status
	report.Claims = corr.Claims
	report.Discrepancies = corr.Discrepancies
	report.Capabilities = caps
	report.Findings = findings
	report.Behavior = behavior
	report.Risk = synthesis
	if len(sourceErrors) > 0 {
		report.SourceErrors = sourceErrors
	}
	report.Duration = time.Since(started)
	return report, nil
}

// probeRPC fetches one endpoint's view of the target. Transport failures
// yield a nil surface (source absent); a clean not-found yields an empty
// capability record, which is itself comparable evidence.
func (v *Verifier) probeRPC(ctx context.Context, client *chain.Client, label string, target Target, fetchModules bool) sourceProbe {
	probe := sourceProbe{label: label}

	resources, err := client.GetResources(ctx, target.Address)
	if err != nil && !errors.Is(err, chain.ErrNotFound) {
		probe.err = err
		return probe
	}

	probe.caps = extract.CapabilitiesFromResources(target.Kind, filterResources(target, resources))

	codeHash := ""
	if fetchModules {
		modules, err := client.GetModules(ctx, target.Address)
		if err != nil && !errors.Is(err, chain.ErrNotFound) {
			logger.Debug("source %s: module fetch failed: %v", label, err)
		} else {
			probe.modules = modules
			codeHash, probe.moduleHashes = extract.CodeHashForModules(modules)
		}
	}

	probe.surface = extract.SurfaceFromCapabilities(label, probe.caps, codeHash)
	return probe
}

// filterResources narrows coin targets to the resources of their struct tag,
// so an account publishing several coins is compared per coin.
func filterResources(target Target, resources []chain.Resource) []chain.Resource {
	if target.Kind != extract.KindCoin {
		return resources
	}
	var out []chain.Resource
	for _, res := range resources {
		if !strings.Contains(res.Type, "::coin::") || strings.Contains(strings.ToLower(res.Type), target.CoinType) {
			out = append(out, res)
		}
	}
	return out
}

func buildArtifacts(target Target, modules []chain.MoveModule) (extract.ArtifactView, extract.EvidenceCapabilities, *chain.ModuleABI) {
	moduleID := extract.ModuleID{Address: target.Address, Name: target.ModuleName}
	view := extract.BuildArtifactView(moduleID, modules)

	var evidence extract.EvidenceCapabilities
	var abi *chain.ModuleABI
	for i := range modules {
		if modules[i].Bytecode != "" {
			evidence.HasBytecodeOrSource = true
		}
		if modules[i].ABI == nil {
			continue
		}
		evidence.HasABI = true
		if abi == nil || strings.EqualFold(modules[i].ABI.Name, target.ModuleName) {
			abi = modules[i].ABI
		}
	}
	evidence.ViewOnly = !evidence.HasABI && !evidence.HasBytecodeOrSource
	return view, evidence, abi
}

// buildBehavior compares sampled invocations against the declared interface.
func buildBehavior(target Target, modules []chain.MoveModule, sampled []chain.SampledTx, sampleErr error, sampleRequested, indexerAnswered bool, activityCount int) *risk.Behavior {
	behavior := &risk.Behavior{
		IndexerSupported: indexerAnswered,
		ActivityCount:    activityCount,
	}
	if !sampleRequested || sampleErr != nil {
		if sampleErr != nil {
			logger.Warn("behavior sampling failed for %s: %v", target.String(), sampleErr)
		}
		return behavior
	}

	behavior.Sampled = true
	behavior.SampledCount = len(sampled)

	declared := make(map[string]struct{})
	for _, mod := range modules {
		if mod.ABI == nil {
			continue
		}
		for _, fn := range mod.ABI.ExposedFunctions {
			declared[strings.ToLower(fn.Name)] = struct{}{}
		}
	}

	for _, tx := range sampled {
		// Payload addresses may carry leading zeros or the full padded form;
		// compare them normalized or phantoms on the target are missed.
		parts := strings.Split(tx.FunctionID, "::")
		if len(parts) != 3 || extract.NormalizeAddress(parts[0]) != target.Address {
			continue
		}
		functionID := target.Address + "::" + parts[1] + "::" + parts[2]
		behavior.Invoked = append(behavior.Invoked, functionID)
		if _, ok := declared[strings.ToLower(tx.FunctionName)]; ok {
			continue
		}
		behavior.Phantom = append(behavior.Phantom, functionID)
		if isPrivilegedName(tx.FunctionName) {
			behavior.PrivilegedPhantom = append(behavior.PrivilegedPhantom, functionID)
		}
	}
	return behavior
}

func isPrivilegedName(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range privilegedNames {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func anyNameMatches(names []string, keyword string) bool {
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), keyword) {
			return true
		}
	}
	return false
}

func hasFinding(findings []rules.Finding, id string) bool {
	for _, f := range findings {
		if f.ID == id {
			return true
		}
	}
	return false
}

// BuildPingSnapshot computes the cheap drift snapshot for a target from the
// primary endpoint, falling back once. It returns nil only on unrecoverable
// fetch failure; a clean not-found still yields a (mostly empty) snapshot.
func (v *Verifier) BuildPingSnapshot(ctx context.Context, target Target) *drift.PingSnapshot {
	for _, client := range []*chain.Client{v.src.Primary, v.src.Fallback} {
		if client == nil {
			continue
		}
		probe := v.probeRPC(ctx, client, client.Label(), target, true)
		if probe.err != nil {
			logger.Warn("ping snapshot via %s failed for %s: %v", client.Label(), target.String(), probe.err)
			continue
		}
		keys := drift.BuildKeys(probe.caps, probe.moduleHashes)
		snap, err := drift.NewSnapshot(string(target.Kind), target.ID(), client.Label(), keys)
		if err != nil {
			logger.Error("fingerprint failed for %s: %v", target.String(), err)
			return nil
		}
		return snap
	}
	return nil
}
