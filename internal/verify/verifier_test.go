package verify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moveguard/internal/chain"
	"moveguard/internal/corroborate"
	"moveguard/internal/extract"
	"moveguard/internal/risk"
)

// fakeFullnode serves the minimal REST surface one verification pass touches.
func fakeFullnode(t *testing.T, label, owner string) *chain.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/resources"):
			fmt.Fprintf(w, `[
				{"type":"0x1::object::ObjectCore","data":{"owner":"%s"}},
				{"type":"0x1::fungible_asset::Metadata","data":{"name":"Moon","symbol":"MOON","decimals":6}},
				{"type":"0x1::fungible_asset::ConcurrentSupply","data":{"current":{"value":"1000"},"max":{"value":"5000"}}}
			]`, owner)
		case strings.HasSuffix(r.URL.Path, "/modules"):
			w.Write([]byte(`[{"bytecode":"0xa11ce0","abi":{"address":"0xabc","name":"token","exposed_functions":[
				{"name":"transfer","is_entry":true,"params":["&signer","address","u64"]}
			]}}]`))
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	client, err := chain.NewClient(chain.ClientConfig{
		Label:   label,
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestVerifyAgreeingSources(t *testing.T) {
	verifier, err := NewVerifier(Sources{
		Primary:  fakeFullnode(t, "primary", "0xaaa"),
		Fallback: fakeFullnode(t, "fallback", "0xaaa"),
	}, nil)
	require.NoError(t, err)

	target, err := ParseTarget(extract.KindFA, "0xabc")
	require.NoError(t, err)

	report, err := verifier.Verify(context.Background(), target, Options{})
	require.NoError(t, err)

	assert.Equal(t, "OK", report.Status)
	assert.Equal(t, corroborate.TierMultiRPC, report.Tier)
	assert.Empty(t, report.Discrepancies)
	assert.Empty(t, report.SourceErrors)
	assert.Equal(t, risk.LevelSafeStatic, report.Risk.Level)
	assert.NotEmpty(t, report.ScanID)

	require.NotNil(t, report.Capabilities)
	assert.Equal(t, "0xaaa", report.Capabilities.Owner)
	assert.Equal(t, "1000", report.Capabilities.Supply)

	owner := findClaim(report.Claims, corroborate.ClaimOwner)
	require.NotNil(t, owner)
	assert.Equal(t, corroborate.StatusConfirmed, owner.Status)

	hash := findClaim(report.Claims, corroborate.ClaimModuleHash)
	require.NotNil(t, hash)
	assert.Equal(t, corroborate.StatusConfirmed, hash.Status)
}

func TestVerifyConflictingOwners(t *testing.T) {
	verifier, err := NewVerifier(Sources{
		Primary:  fakeFullnode(t, "primary", "0xaaa"),
		Fallback: fakeFullnode(t, "fallback", "0xbbb"),
	}, nil)
	require.NoError(t, err)

	target, err := ParseTarget(extract.KindFA, "0xabc")
	require.NoError(t, err)

	report, err := verifier.Verify(context.Background(), target, Options{})
	require.NoError(t, err)

	assert.Equal(t, "CONFLICT", report.Status)
	assert.Equal(t, risk.LevelElevatedRisk, report.Risk.Level)
	require.NotEmpty(t, report.Discrepancies)
	assert.Equal(t, corroborate.ClaimOwner, report.Discrepancies[0].Type)
	assert.Contains(t, report.Risk.Signals, risk.SignalOwnerConflict)
}

func TestVerifySurvivesDeadFallback(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(dead.Close)
	deadClient, err := chain.NewClient(chain.ClientConfig{Label: "fallback", BaseURL: dead.URL, Timeout: 2 * time.Second, Backoff: time.Millisecond})
	require.NoError(t, err)

	verifier, err := NewVerifier(Sources{
		Primary:  fakeFullnode(t, "primary", "0xaaa"),
		Fallback: deadClient,
	}, nil)
	require.NoError(t, err)

	target, err := ParseTarget(extract.KindFA, "0xabc")
	require.NoError(t, err)

	report, err := verifier.Verify(context.Background(), target, Options{})
	require.NoError(t, err)

	// One answering endpoint cannot corroborate anything.
	assert.Equal(t, corroborate.TierViewOnly, report.Tier)
	assert.Equal(t, "OK", report.Status)
	assert.Contains(t, report.SourceErrors, "fallback")
	assert.Equal(t, risk.LevelElevatedRisk, report.Risk.Level)
}

func TestVerifyUndeclaredInvocationIsDangerous(t *testing.T) {
	// The sampled payload carries the target address with leading zeros, the
	// form fullnodes commonly return; matching must survive that.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/resources"):
			w.Write([]byte(`[{"type":"0x1::object::ObjectCore","data":{"owner":"0xaaa"}}]`))
		case strings.HasSuffix(r.URL.Path, "/modules"):
			w.Write([]byte(`[{"bytecode":"0xa11ce0","abi":{"address":"0xabc","name":"token","exposed_functions":[
				{"name":"transfer","is_entry":true,"params":["&signer","address","u64"]}
			]}}]`))
		case strings.HasSuffix(r.URL.Path, "/transactions"):
			w.Write([]byte(`[
				{"version":"1","payload":{"type":"entry_function_payload","function":"0x0000abc::token::transfer"}},
				{"version":"2","payload":{"type":"entry_function_payload","function":"0x0000abc::token::hidden_mint"}}
			]`))
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	newClient := func(label string) *chain.Client {
		client, err := chain.NewClient(chain.ClientConfig{Label: label, BaseURL: server.URL, Timeout: 2 * time.Second})
		require.NoError(t, err)
		return client
	}
	primary := newClient("primary")

	verifier, err := NewVerifier(Sources{
		Primary:  primary,
		Fallback: newClient("fallback"),
		Sampler:  chain.NewSampler(primary, 25),
	}, nil)
	require.NoError(t, err)

	target, err := ParseTarget(extract.KindFA, "0xabc")
	require.NoError(t, err)

	report, err := verifier.Verify(context.Background(), target, Options{SampleTransactions: true})
	require.NoError(t, err)

	require.NotNil(t, report.Behavior)
	assert.True(t, report.Behavior.Sampled)
	assert.Equal(t, []string{"0xabc::token::hidden_mint"}, report.Behavior.Phantom)
	assert.Equal(t, []string{"0xabc::token::hidden_mint"}, report.Behavior.PrivilegedPhantom)
	assert.Contains(t, report.Behavior.Invoked, "0xabc::token::transfer")

	assert.Equal(t, risk.LevelDangerous, report.Risk.Level)
	assert.Contains(t, report.Risk.Signals, risk.SignalPhantomEntrypoints)
	assert.Contains(t, report.Risk.Signals, risk.SignalPrivilegedPhantom)
}

func TestVerifyWalletRationaleNamesAssumption(t *testing.T) {
	verifier, err := NewVerifier(Sources{
		Primary:  fakeFullnode(t, "primary", "0xaaa"),
		Fallback: fakeFullnode(t, "fallback", "0xaaa"),
	}, nil)
	require.NoError(t, err)

	target, err := ParseTarget(extract.KindWallet, "0xabc")
	require.NoError(t, err)

	report, err := verifier.Verify(context.Background(), target, Options{})
	require.NoError(t, err)
	assert.Contains(t, report.Risk.Rationale, "wallet target verified under assumed fungible-asset semantics")
}

func TestNewVerifierRequiresPrimary(t *testing.T) {
	_, err := NewVerifier(Sources{}, nil)
	assert.Error(t, err)
}

func findClaim(claims []corroborate.Claim, ct corroborate.ClaimType) *corroborate.Claim {
	for i := range claims {
		if claims[i].Type == ct {
			return &claims[i]
		}
	}
	return nil
}
