package store

import (
	"fmt"
	"strings"
	"time"
)

const sequencePad = 4

// FormatTokenNumber renders <DEPT3><YYYYMMDD><SEQ4>, e.g. OPD202501170007.
// Department codes shorter than three characters are used as-is.
func FormatTokenNumber(departmentCode string, day time.Time, seq int64) string {
	return fmt.Sprintf("%s%s%0*d", deptPrefix(departmentCode), day.Format("20060102"), sequencePad, seq)
}

// FormatAppointmentNumber renders A<DEPT3><YYYYMMDD><SEQ4>. The leading
// marker keeps the appointment series distinguishable from token numbers
// issued by the same department on the same day.
func FormatAppointmentNumber(departmentCode string, day time.Time, seq int64) string {
	return "A" + FormatTokenNumber(departmentCode, day, seq)
}

func deptPrefix(code string) string {
	prefix := strings.ToUpper(strings.TrimSpace(code))
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	return prefix
}
