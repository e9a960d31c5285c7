package internalcheck

import (
	"testing"

	"golang.org/x/tools/go/packages"
)

// checkedPackages are the packages that touch key shares, nonces or partial
// signatures.
var checkedPackages = []string{
	"github.com/pairsig/pairsig-go/pkg/pairsig",
	"github.com/pairsig/pairsig-go/pkg/pairsig/curve",
	"github.com/pairsig/pairsig-go/pkg/pairsig/wire",
	"github.com/pairsig/pairsig-go/pkg/pairsig/schnorr2p",
}

const pairsigPath = "github.com/pairsig/pairsig-go/pkg/pairsig"

func loadChecked(t *testing.T, mode packages.LoadMode) []*packages.Package {
	t.Helper()
	cfg := &packages.Config{Mode: mode}
	pkgs, err := packages.Load(cfg, checkedPackages...)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		t.Fatal("packages contain errors")
	}
	if len(pkgs) != len(checkedPackages) {
		t.Fatalf("loaded %d packages, want %d", len(pkgs), len(checkedPackages))
	}
	return pkgs
}
