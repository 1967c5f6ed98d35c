// Package bundle partitions a committed asset graph into output bundles and
// answers the structural queries that namers, packagers, and optimizers need.
//
// A Bundle groups assets that share an output file. The BundleGraph layers
// bundle membership, bundle groups, and inter-bundle references over the
// asset graph without cloning any asset or dependency nodes; it holds
// identifiers only. During the bundle phase a single bundler mutates the
// graph through MutableBundleGraph; afterwards downstream consumers treat it
// as read-only.
package bundle

import (
	"github.com/google/uuid"

	"github.com/packfold/packfold/pkg/asset"
	"github.com/packfold/packfold/pkg/cache"
	"github.com/packfold/packfold/pkg/env"
)

// HashRefPrefix marks a content-hash placeholder inside a bundle file path.
// Namers embed HashReference into the path; the packaging phase substitutes
// the final content hash once bundle contents are known.
const HashRefPrefix = "@@HASH_"

// Bundle is one output grouping of assets.
//
// Membership is exactly the transitive closure reachable from the bundle's
// entry assets minus excluded and boundary-crossing subgraphs, maintained by
// MutableBundleGraph.AddAssetGraphToBundle and RemoveAssetGraphFromBundle.
// An asset may belong to several bundles at once.
type Bundle struct {
	// ID is stable for a given entry asset (or unique key), type,
	// environment, and target.
	ID string

	// HashReference is the placeholder substituted into FilePath after
	// final content hashing.
	HashReference string

	Type   string
	Env    *env.Environment
	Target *env.Target

	// UniqueKey identifies bundles created without an entry asset.
	UniqueKey string

	IsEntry         bool
	IsInline        bool
	IsSplittable    bool
	NeedsStableName bool

	// Name and FilePath are assigned by the namer phase.
	Name     string
	FilePath string

	entryAssetIDs []string
	members       map[string]bool
	memberOrder   []string
}

// NewUniqueKey returns a fresh unique key for a bundle that has no entry
// asset, such as a shared chunk split out by a bundler.
func NewUniqueKey() string {
	return uuid.NewString()
}

func (b *Bundle) addMember(assetID string) bool {
	if b.members[assetID] {
		return false
	}
	b.members[assetID] = true
	b.memberOrder = append(b.memberOrder, assetID)
	return true
}

func (b *Bundle) removeMember(assetID string) bool {
	if !b.members[assetID] {
		return false
	}
	delete(b.members, assetID)
	for i, id := range b.memberOrder {
		if id == assetID {
			b.memberOrder = append(b.memberOrder[:i], b.memberOrder[i+1:]...)
			break
		}
	}
	return true
}

// HasAsset reports whether the asset is currently a member of the bundle.
func (b *Bundle) HasAsset(assetID string) bool { return b.members[assetID] }

// AssetIDs returns the member asset IDs in insertion order.
func (b *Bundle) AssetIDs() []string {
	out := make([]string, len(b.memberOrder))
	copy(out, b.memberOrder)
	return out
}

// EntryAssetIDs returns the bundle's entry asset IDs in registration order.
func (b *Bundle) EntryAssetIDs() []string {
	out := make([]string, len(b.entryAssetIDs))
	copy(out, b.entryAssetIDs)
	return out
}

// AssetCount returns the current membership size.
func (b *Bundle) AssetCount() int { return len(b.members) }

// DisplayName returns the assigned name, or a short identity fallback for
// bundles the namer has not visited yet.
func (b *Bundle) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	return b.Type + ":" + b.ID
}

func bundleID(identity, bundleType, envID, targetName string) string {
	return cache.ShortHash([]byte(identity + ":" + bundleType + ":" + envID + ":" + targetName))
}

// BundleGroup is the set of bundles loaded together to satisfy one entry or
// async dependency. The group's bundles are siblings: a runtime that loads
// the group loads all of them before execution continues.
type BundleGroup struct {
	ID        string
	EntryDep  *asset.Dependency
	Target    *env.Target
	bundleIDs []string
}

// BundleIDs returns the group's bundle IDs in registration order.
func (g *BundleGroup) BundleIDs() []string {
	out := make([]string, len(g.bundleIDs))
	copy(out, g.bundleIDs)
	return out
}
