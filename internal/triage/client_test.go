package triage

import "testing"

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"sos_emergency", CategorySOSEmergency},
		{"medication_missed", CategoryMedicationMissed},
		{"appointment", CategoryAppointment},
		{"general", CategoryGeneral},
		{"  SOS_EMERGENCY \n", CategorySOSEmergency},
		{"Medication_Missed", CategoryMedicationMissed},
		// Anything the model invents collapses to general.
		{"urgent!!", CategoryGeneral},
		{"", CategoryGeneral},
		{"the category is sos_emergency", CategoryGeneral},
	}
	for _, tt := range tests {
		if got := parseCategory(tt.in); got != tt.want {
			t.Errorf("parseCategory(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
