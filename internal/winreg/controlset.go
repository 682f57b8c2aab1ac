package winreg

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/davidbalzan/bluetooth-sync/internal/types"
)

// ErrNoControlSet indicates the hive carries neither a usable Select key
// nor any ControlSetNNN key. Callers treat this as a hive without readable
// pairings rather than a fatal condition.
var ErrNoControlSet = errors.New("winreg: no control set found")

// ResolveControlSet returns the active ControlSetNNN key of a SYSTEM hive.
// The Select key's Current value names the set; when that lookup fails in
// any way the well-known sets are probed by index, first that opens wins.
func ResolveControlSet(r types.Reader, log *slog.Logger) (types.NodeID, string, error) {
	root := r.Root()

	if node, name, err := currentControlSet(r, root); err == nil {
		return node, name, nil
	} else {
		log.Debug("Select\\Current lookup failed, probing control sets", "error", err)
	}

	for _, n := range []int{1, 2, 3} {
		name := controlSetName(n)
		node, err := r.Lookup(root, name)
		if err == nil {
			log.Info("using control set", "name", name)
			return node, name, nil
		}
	}
	return 0, "", ErrNoControlSet
}

func currentControlSet(r types.Reader, root types.NodeID) (types.NodeID, string, error) {
	sel, err := r.Lookup(root, "Select")
	if err != nil {
		return 0, "", fmt.Errorf("key Select: %w", err)
	}
	cur, err := r.LookupValue(sel, "Current")
	if err != nil {
		return 0, "", fmt.Errorf("value Current: %w", err)
	}
	n, err := r.ValueDWORD(cur)
	if err != nil {
		return 0, "", fmt.Errorf("value Current: %w", err)
	}
	name := controlSetName(int(n))
	node, err := r.Lookup(root, name)
	if err != nil {
		return 0, "", fmt.Errorf("key %s: %w", name, err)
	}
	return node, name, nil
}

func controlSetName(n int) string {
	return fmt.Sprintf("ControlSet%03d", n)
}
