// internal/models/beat_test.go
package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLicenseOffer(t *testing.T) {
	offer, err := NewLicenseOffer(uuid.New(), LicenseTierBasic, 2900, "eur",
		FormatList{FormatMP3, FormatWAV},
		map[DeliveryFormat]string{
			FormatMP3: "beats/x/master.mp3",
			FormatWAV: "beats/x/master.wav",
		})
	require.NoError(t, err)

	key, ok := offer.FileKey(FormatMP3)
	assert.True(t, ok)
	assert.Equal(t, "beats/x/master.mp3", key)

	// Stems is not part of this offer even if a file existed for it.
	_, ok = offer.FileKey(FormatStems)
	assert.False(t, ok)
}

func TestNewLicenseOfferRequiresFilePerFormat(t *testing.T) {
	_, err := NewLicenseOffer(uuid.New(), LicenseTierBasic, 2900, "eur",
		FormatList{FormatMP3, FormatWAV},
		map[DeliveryFormat]string{
			FormatMP3: "beats/x/master.mp3",
		})
	assert.Error(t, err)
}

func TestNewLicenseOfferValidation(t *testing.T) {
	files := map[DeliveryFormat]string{FormatMP3: "beats/x/master.mp3"}

	_, err := NewLicenseOffer(uuid.New(), "platinum", 2900, "eur", FormatList{FormatMP3}, files)
	assert.Error(t, err)

	_, err = NewLicenseOffer(uuid.New(), LicenseTierBasic, 0, "eur", FormatList{FormatMP3}, files)
	assert.Error(t, err)

	_, err = NewLicenseOffer(uuid.New(), LicenseTierBasic, 2900, "eur", FormatList{}, files)
	assert.Error(t, err)
}
