package bluez

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRecord = `[General]
Name=Old Name
Appearance=0x03c1
SupportedTechnologies=BR/EDR;LE;

[DeviceID]
Source=2
Vendor=1133
Product=45913

[ConnectionParameters]
MinInterval=6
MaxInterval=9
`

func TestParseRecordRoundTrip(t *testing.T) {
	rec, err := ParseRecord(strings.NewReader(sampleRecord))
	require.NoError(t, err)
	require.Len(t, rec.Sections, 3)
	assert.Equal(t, "General", rec.Sections[0].Name)
	assert.Equal(t, "DeviceID", rec.Sections[1].Name)
	assert.Equal(t, "ConnectionParameters", rec.Sections[2].Name)

	assert.Equal(t, sampleRecord, string(rec.Marshal()))
}

func TestParseRecordTolerance(t *testing.T) {
	in := strings.Join([]string{
		"stray line before any header",
		"",
		"  [General]  ",
		"Name=Headset",
		"not a key value line",
		"Empty=",
		"Pair=a=b",
		"",
	}, "\n")

	rec, err := ParseRecord(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rec.Sections, 1)
	assert.Equal(t, "General", rec.Sections[0].Name)
	assert.Equal(t, []KV{
		{Key: "Name", Value: "Headset"},
		{Key: "Empty", Value: ""},
		{Key: "Pair", Value: "a=b"}, // split at the first '=' only
	}, rec.Sections[0].Keys)
}

func TestParseRecordEmpty(t *testing.T) {
	rec, err := ParseRecord(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rec.Sections)
	assert.Empty(t, rec.Marshal())
}

func TestRecordSet(t *testing.T) {
	rec, err := ParseRecord(strings.NewReader(sampleRecord))
	require.NoError(t, err)

	// Existing key keeps its position.
	rec.Set("General", "Name", "New Name")
	assert.Equal(t, KV{Key: "Name", Value: "New Name"}, rec.Sections[0].Keys[0])

	// New key lands at the end of its section.
	rec.Set("General", "Trusted", "true")
	last := rec.Sections[0].Keys[len(rec.Sections[0].Keys)-1]
	assert.Equal(t, KV{Key: "Trusted", Value: "true"}, last)

	// New section lands at the end of the record.
	rec.Set("LinkKey", "Key", "AB")
	assert.Equal(t, "LinkKey", rec.Sections[len(rec.Sections)-1].Name)

	got, ok := rec.Get("LinkKey", "Key")
	require.True(t, ok)
	assert.Equal(t, "AB", got)

	_, ok = rec.Get("LinkKey", "Missing")
	assert.False(t, ok)
}
