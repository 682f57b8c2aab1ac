package winreg

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/davidbalzan/bluetooth-sync/internal/btaddr"
	"github.com/davidbalzan/bluetooth-sync/internal/reader"
	"github.com/davidbalzan/bluetooth-sync/internal/types"
)

// bthportPath descends from the active control set to the per-adapter
// link-key storage.
var bthportPath = []string{"Services", "BTHPORT", "Parameters", "Keys"}

// ExtractDevices opens the hive read-only and recovers every paired
// device under every Bluetooth adapter. A hive without the BTHPORT tree
// yields an empty slice and no error; an unresolvable control set is
// reported as ErrNoControlSet, which callers may treat as the no-pairings
// case. Individual devices that cannot be decoded are skipped.
func ExtractDevices(hivePath string, log *slog.Logger) ([]PairedDevice, error) {
	r, err := reader.Open(hivePath)
	if err != nil {
		return nil, fmt.Errorf("open hive %s: %w", hivePath, err)
	}
	defer r.Close()
	return extract(r, log)
}

func extract(r types.Reader, log *slog.Logger) ([]PairedDevice, error) {
	node, csName, err := ResolveControlSet(r, log)
	if err != nil {
		return nil, err
	}
	log.Debug("resolved control set", "name", csName)

	for _, step := range bthportPath {
		node, err = r.Lookup(node, step)
		if err != nil {
			log.Info("no Bluetooth pairing keys in hive", "missing", step)
			return nil, nil
		}
	}

	adapters, err := r.Subkeys(node)
	if err != nil {
		return nil, fmt.Errorf("list adapters: %w", err)
	}

	var devices []PairedDevice
	for _, adapter := range adapters {
		adapterName, err := r.KeyName(adapter)
		if err != nil {
			log.Warn("skipping unreadable adapter key", "error", err)
			continue
		}
		log.Info("found Bluetooth adapter", "address", btaddr.FormatAddress(adapterName))

		children, err := r.Subkeys(adapter)
		if err != nil {
			log.Warn("skipping adapter with unreadable device list", "adapter", adapterName, "error", err)
			continue
		}
		for _, child := range children {
			dev, err := extractDevice(r, child)
			if err != nil {
				log.Warn("skipping device", "adapter", adapterName, "error", err)
				continue
			}
			log.Info("found paired device", "name", dev.Name, "address", dev.Address)
			devices = append(devices, dev)
		}
	}
	return devices, nil
}

// extractDevice reads one device key: the LinkKey value is required, the
// display name and class of device are optional.
func extractDevice(r types.Reader, id types.NodeID) (PairedDevice, error) {
	keyName, err := r.KeyName(id)
	if err != nil {
		return PairedDevice{}, fmt.Errorf("device key name: %w", err)
	}

	lk, err := r.LookupValue(id, "LinkKey")
	if err != nil {
		return PairedDevice{}, fmt.Errorf("device %s: %w", keyName, err)
	}
	raw, _, err := r.ValueBytes(lk)
	if err != nil {
		return PairedDevice{}, fmt.Errorf("device %s: read LinkKey: %w", keyName, err)
	}
	if len(raw) == 0 {
		return PairedDevice{}, fmt.Errorf("device %s: empty LinkKey", keyName)
	}

	dev := PairedDevice{
		Name:    deviceName(r, id, keyName),
		Address: btaddr.FormatAddress(keyName),
		LinkKey: strings.ToUpper(hex.EncodeToString(raw)),
	}
	if cod, ok := classOfDevice(r, id); ok {
		dev.Class = cod
		dev.ServiceClasses = ServiceClassNames(cod)
	}
	return dev, nil
}

// deviceName decodes the optional Name value. String-typed values decode
// as UTF-16; anything else is treated as raw bytes holding UTF-8 with
// invalid sequences replaced. Falls back to the registry key name.
func deviceName(r types.Reader, id types.NodeID, keyName string) string {
	v, err := r.LookupValue(id, "Name")
	if err != nil {
		return keyName
	}
	meta, err := r.StatValue(v)
	if err != nil {
		return keyName
	}
	var name string
	switch meta.Type {
	case types.REG_SZ, types.REG_EXPAND_SZ:
		name, err = r.ValueString(v)
		if err != nil {
			return keyName
		}
	default:
		raw, _, err := r.ValueBytes(v)
		if err != nil {
			return keyName
		}
		name = strings.ToValidUTF8(string(bytes.TrimRight(raw, "\x00")), "�")
	}
	if name == "" {
		return keyName
	}
	return name
}

func classOfDevice(r types.Reader, id types.NodeID) (uint32, bool) {
	v, err := r.LookupValue(id, "COD")
	if err != nil {
		return 0, false
	}
	cod, err := r.ValueDWORD(v)
	if err != nil {
		return 0, false
	}
	return cod, true
}
