package meter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMeterReadingUnmarshal(t *testing.T) {
	payload := `{"siteId":4,"dateTime":1562716800,"whUsed":2.0,"whGenerated":7.5,"tempC":21,"panelTemp":"hot","inverter":3}`

	var got MeterReading
	require.NoError(t, json.Unmarshal([]byte(payload), &got))
	require.Equal(t, MeterReading{
		SiteID:      4,
		DateTime:    1562716800,
		WhUsed:      Float(2.0),
		WhGenerated: Float(7.5),
		TempC:       Float(21),
		Extra:       map[string]string{"panelTemp": "hot", "inverter": "3"},
	}, got)
	capacity, ok := got.Capacity()
	require.True(t, ok)
	require.Equal(t, 5.5, capacity)
}

func TestMeterReadingKeepsMissingMeasurementsAbsent(t *testing.T) {
	var got MeterReading
	require.NoError(t, json.Unmarshal([]byte(`{"siteId":4,"dateTime":1562716800,"whGenerated":7.5,"tempC":null}`), &got))
	require.Nil(t, got.WhUsed)
	require.Nil(t, got.TempC)
	require.Equal(t, 7.5, *got.WhGenerated)

	_, ok := got.Capacity()
	require.False(t, ok)

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	require.Equal(t, map[string]any{
		"siteId":      4.0,
		"dateTime":    1562716800.0,
		"whGenerated": 7.5,
	}, fields)
}

func TestMeterReadingUnmarshalTimestampFormats(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{`1562716800`, 1562716800},
		{`"1562716800"`, 1562716800},
		{`"2019-07-10T00:00:00Z"`, 1562716800},
		{`"2019-07-10T02:00:00+02:00"`, 1562716800},
	}
	for _, tc := range tests {
		var got MeterReading
		require.NoError(t, json.Unmarshal([]byte(`{"siteId":1,"dateTime":`+tc.raw+`}`), &got), tc.raw)
		require.Equal(t, tc.want, got.DateTime, tc.raw)
	}

	var bad MeterReading
	require.Error(t, json.Unmarshal([]byte(`{"siteId":1,"dateTime":"yesterday"}`), &bad))
	require.Error(t, json.Unmarshal([]byte(`{"siteId":"four","dateTime":1}`), &bad))
}

func TestMeterReadingValidate(t *testing.T) {
	require.NoError(t, MeterReading{SiteID: 1, DateTime: 1}.Validate())
	require.Error(t, MeterReading{DateTime: 1}.Validate())
	require.Error(t, MeterReading{SiteID: 1}.Validate())
}

func TestFeedEntryMarshalOmitsAbsentFields(t *testing.T) {
	siteID := int64(4)
	generated := 7.5
	entry := FeedEntry{
		ID:          "1-0",
		SiteID:      &siteID,
		WhGenerated: &generated,
		Extra:       map[string]string{"note": "x"},
	}

	raw, err := json.Marshal(entry)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, map[string]any{
		"id":          "1-0",
		"siteId":      4.0,
		"whGenerated": 7.5,
		"note":        "x",
	}, got)
}
