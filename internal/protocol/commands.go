package protocol

// Command ids of the Nubert control protocol. The device distinguishes GET
// and SET ids per field; notifications always carry the GET id of the field
// they report.
const (
	CmdPowerGet byte = 0x1E
	CmdPowerSet byte = 0x1F

	CmdVolumeGet byte = 0x0A
	CmdVolumeSet byte = 0x0B

	CmdSourceGet byte = 0x0E
	CmdSourceSet byte = 0x0F

	CmdMuteGet byte = 0x4A
	CmdMuteSet byte = 0x4B

	// CmdSlaveGet reports whether the device runs as the slave of a stereo
	// pair. There is no SET counterpart.
	CmdSlaveGet byte = 0x4C

	// CmdConnectIndication toggles the LED connect cue on the device. Write
	// only, cosmetic.
	CmdConnectIndication byte = 0x4D

	// CmdBulkGet requests several fields at once; the payload lists the GET
	// ids to answer. The device replies with one notification per field.
	CmdBulkGet byte = 0x40
)

// recognized is the set of command ids whose notifications update session
// state. Anything else the device emits is filler and is ignored.
var recognized = map[byte]bool{
	CmdPowerGet:  true,
	CmdVolumeGet: true,
	CmdSourceGet: true,
	CmdMuteGet:   true,
	CmdSlaveGet:  true,
}

// Recognized reports whether cmd is a state-carrying command id.
func Recognized(cmd byte) bool {
	return recognized[cmd]
}
