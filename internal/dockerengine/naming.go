package dockerengine

import "encoding/hex"

// NamePrefix is prepended to every deterministic volume/container name
// this host creates, so that resources can be discovered and reaped
// without holding a live handle (§3 "Container naming").
const NamePrefix = "roomhost"

// VolumeName returns the deterministic name of a room's data volume:
// {prefix}_{hex(room_name)}.
func VolumeName(roomName string) string {
	return NamePrefix + "_" + hexEncode(roomName)
}

// ContainerName returns the deterministic name of an executor's
// container: {prefix}_{hex(room_name)}-{hex(executor_name)}.
//
// executorName is empty for containers that are not tied to a single
// named executor's slot (none currently; kept for symmetry with the
// volume-only form used by rooms without executors).
func ContainerName(roomName, executorName string) string {
	name := NamePrefix + "_" + hexEncode(roomName)
	if executorName != "" {
		name += "-" + hexEncode(executorName)
	}
	return name
}

// hexEncode is lowercase byte-wise hex of the UTF-8 input, matching the
// original's `binascii.hexlify(name.encode("utf-8"))`.
func hexEncode(s string) string {
	return hex.EncodeToString([]byte(s))
}
