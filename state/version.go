package state

// PAN versions are compared with 16-bit serial number arithmetic.

func SeqnoLt(a, b uint16) bool {
	x := b - a
	return 0 < x && x < 32768
}

func SeqnoLe(a, b uint16) bool {
	return a == b || SeqnoLt(a, b)
}

func SeqnoGt(a, b uint16) bool {
	return !SeqnoLe(a, b)
}

func SeqnoGe(a, b uint16) bool {
	return !SeqnoLt(a, b)
}

// VersionNewer reports whether v is strictly newer than cur.
func VersionNewer(v, cur uint16) bool {
	return SeqnoLt(cur, v)
}
