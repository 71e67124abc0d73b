// Package merge combines the ACE analysis tree and the specialist-agent
// tree into one unified result without losing any leaf value from either
// side.
package merge

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Source names are part of the merged key scheme, so they are fixed.
const (
	SourceACE     = "ace"
	SourceEssence = "essence"
)

// Source is one pipeline's output tree. A nil Tree means the pipeline did
// not run; Err carries the reason.
type Source struct {
	Name string
	Tree map[string]interface{}
	Err  error
}

// ErrorRecord notes a pipeline whose output is absent from the merge.
type ErrorRecord struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// Conflict records a path where both sources held different, unmergeable
// values. Both values survive under provider-qualified keys.
type Conflict struct {
	Path     string `json:"path"`
	ACEKey   string `json:"ace_key"`
	OtherKey string `json:"other_key"`
}

// Visual is a chart or image artifact surfaced out of the merged tree.
type Visual struct {
	Path  string      `json:"path"`
	Kind  string      `json:"kind"`
	Value interface{} `json:"value"`
}

// UnifiedResult is the merger's output. Merged maps dot-joined leaf paths to
// values; every leaf reachable from either source tree is reachable here,
// under a qualified key when the sources conflicted.
type UnifiedResult struct {
	Merged     map[string]interface{}            `json:"merged"`
	Visuals    []Visual                          `json:"visuals,omitempty"`
	RawSources map[string]map[string]interface{} `json:"raw_sources"`
	Conflicts  []Conflict                        `json:"conflicts,omitempty"`
	Errors     []ErrorRecord                     `json:"errors,omitempty"`
}

// Merge combines the two pipeline trees. It never fails: an absent pipeline
// is modeled as an empty tree plus an error record.
func Merge(ace, essence Source) *UnifiedResult {
	result := &UnifiedResult{
		RawSources: map[string]map[string]interface{}{},
	}

	aceTree := ace.Tree
	if aceTree == nil {
		aceTree = map[string]interface{}{}
		result.Errors = append(result.Errors, ErrorRecord{
			Source: SourceACE,
			Reason: absenceReason(ace.Err),
		})
	}
	essenceTree := essence.Tree
	if essenceTree == nil {
		essenceTree = map[string]interface{}{}
		result.Errors = append(result.Errors, ErrorRecord{
			Source: SourceEssence,
			Reason: absenceReason(essence.Err),
		})
	}

	result.RawSources[SourceACE] = aceTree
	result.RawSources[SourceEssence] = essenceTree

	merged := mergeNodes("", aceTree, essenceTree, result)
	result.Merged = Flatten(merged)
	result.Visuals = detectVisuals(merged)

	return result
}

func absenceReason(err error) string {
	if err != nil {
		return err.Error()
	}
	return "pipeline did not run"
}

// mergeNodes merges two maps recursively. Conflicting leaves are kept under
// source-qualified keys and recorded on result.
func mergeNodes(prefix string, a, b map[string]interface{}, result *UnifiedResult) map[string]interface{} {
	out := make(map[string]interface{}, len(a)+len(b))

	for key, av := range a {
		path := joinPath(prefix, key)
		bv, inBoth := b[key]
		if !inBoth {
			out[key] = av
			continue
		}
		out[key] = mergeValues(path, key, av, bv, out, result)
	}
	for key, bv := range b {
		if _, seen := a[key]; !seen {
			out[key] = bv
		}
	}
	return out
}

// mergeValues applies the merge rules for one shared path. It may write
// qualified keys into parent and return nothing for the plain key; in that
// case it returns a sentinel handled by the caller.
func mergeValues(path, key string, av, bv interface{}, parent map[string]interface{}, result *UnifiedResult) interface{} {
	if reflect.DeepEqual(av, bv) {
		return av
	}

	// Both maps: recurse.
	am, aIsMap := av.(map[string]interface{})
	bm, bIsMap := bv.(map[string]interface{})
	if aIsMap && bIsMap {
		return mergeNodes(path, am, bm, result)
	}

	// Both lists: concatenate, ACE side first.
	as, aIsList := av.([]interface{})
	bs, bIsList := bv.([]interface{})
	if aIsList && bIsList {
		combined := make([]interface{}, 0, len(as)+len(bs))
		combined = append(combined, as...)
		combined = append(combined, bs...)
		return combined
	}

	// Prefer the non-empty value when exactly one side is empty.
	if isEmpty(av) && !isEmpty(bv) {
		return bv
	}
	if isEmpty(bv) && !isEmpty(av) {
		return av
	}

	// Unresolvable conflict: keep both, qualified by source.
	aceKey := key + "." + SourceACE
	otherKey := key + "." + SourceEssence
	parent[aceKey] = av
	parent[otherKey] = bv
	result.Conflicts = append(result.Conflicts, Conflict{
		Path:     path,
		ACEKey:   joinPath(pathParent(path), aceKey),
		OtherKey: joinPath(pathParent(path), otherKey),
	})
	return conflictPlaced{}
}

// conflictPlaced marks that mergeValues already wrote qualified keys.
type conflictPlaced struct{}

func isEmpty(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []interface{}:
		return len(x) == 0
	case map[string]interface{}:
		return len(x) == 0
	}
	return false
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func pathParent(path string) string {
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		return path[:idx]
	}
	return ""
}

// Flatten walks a tree to its leaf paths. Keys are dot-joined; list elements
// use their index. Empty maps and lists flatten to themselves so they stay
// visible.
func Flatten(tree map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	flattenInto("", tree, out)
	return out
}

func flattenInto(prefix string, value interface{}, out map[string]interface{}) {
	switch v := value.(type) {
	case conflictPlaced:
		// Qualified keys carry the values; the marker itself is dropped.
	case map[string]interface{}:
		if len(v) == 0 && prefix != "" {
			out[prefix] = v
			return
		}
		for key, child := range v {
			flattenInto(joinPath(prefix, key), child, out)
		}
	case []interface{}:
		if len(v) == 0 && prefix != "" {
			out[prefix] = v
			return
		}
		for i, child := range v {
			flattenInto(joinPath(prefix, fmt.Sprintf("%d", i)), child, out)
		}
	default:
		out[prefix] = v
	}
}

// Visual detection heuristics: inline base64 images and chart specs.
var imagePrefixes = []string{
	"data:image/",
	"iVBOR", // PNG
	"/9j/",  // JPEG
}

// detectVisuals walks the merged tree looking for inline images and chart
// specs. A detected chart subtree is surfaced whole; its leaves are not
// scanned again.
func detectVisuals(tree map[string]interface{}) []Visual {
	var visuals []Visual
	walkVisuals("", tree, &visuals)
	sort.Slice(visuals, func(i, j int) bool { return visuals[i].Path < visuals[j].Path })
	return visuals
}

func walkVisuals(prefix string, value interface{}, visuals *[]Visual) {
	switch v := value.(type) {
	case map[string]interface{}:
		if prefix != "" && isChartNode(prefix, v) {
			*visuals = append(*visuals, Visual{Path: prefix, Kind: "chart", Value: v})
			return
		}
		for key, child := range v {
			walkVisuals(joinPath(prefix, key), child, visuals)
		}
	case []interface{}:
		for i, child := range v {
			walkVisuals(joinPath(prefix, fmt.Sprintf("%d", i)), child, visuals)
		}
	case string:
		for _, imgPrefix := range imagePrefixes {
			if strings.HasPrefix(v, imgPrefix) {
				*visuals = append(*visuals, Visual{Path: prefix, Kind: "image", Value: v})
				return
			}
		}
	}
}

// isChartNode recognizes chart-shaped subtrees: a key naming a chart, or
// the common chart-spec marker fields.
func isChartNode(path string, node map[string]interface{}) bool {
	last := path
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		last = path[idx+1:]
	}
	if strings.Contains(last, "chart") {
		return true
	}
	if _, ok := node["chart_type"]; ok {
		return true
	}
	_, hasType := node["type"]
	_, hasSeries := node["series"]
	_, hasData := node["data"]
	return hasType && (hasSeries || hasData)
}
