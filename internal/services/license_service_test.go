// internal/services/license_service_test.go
package services

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/soundhaus/label-backend/internal/config"
	"github.com/soundhaus/label-backend/internal/database"
	"github.com/soundhaus/label-backend/internal/models"
)

type LicenseServiceTestSuite struct {
	suite.Suite
	db       *gorm.DB
	cfg      *config.Config
	licenses *LicenseService
	beat     *models.Beat
	offer    *models.LicenseOffer
}

func (suite *LicenseServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	suite.cfg = newTestConfig()
	require.NoError(suite.T(), database.SeedDefaultTemplates(suite.db))

	templates := NewTemplateService(suite.db)
	suite.licenses = NewLicenseService(suite.db, suite.cfg, templates)
	suite.beat, suite.offer = seedBeat(suite.T(), suite.db)
}

func (suite *LicenseServiceTestSuite) issue(sessionID string) *models.IssuedLicense {
	purchase := seedPurchase(suite.T(), suite.db, suite.beat, suite.offer, sessionID)

	var license *models.IssuedLicense
	err := database.WithTransaction(suite.db, func(tx *gorm.DB) error {
		issued, err := suite.licenses.IssueLicense(tx, purchase, suite.beat)
		license = issued
		return err
	})
	require.NoError(suite.T(), err)
	return license
}

func (suite *LicenseServiceTestSuite) TestLicenseNumbersAreSequential() {
	first := suite.issue("cs_test_001")
	second := suite.issue("cs_test_002")

	year := time.Now().UTC().Year()
	assert.Equal(suite.T(), fmt.Sprintf("SHR-%d-000001", year), first.LicenseNumber)
	assert.Equal(suite.T(), fmt.Sprintf("SHR-%d-000002", year), second.LicenseNumber)
}

func (suite *LicenseServiceTestSuite) TestSnapshotFrozenAtIssuance() {
	license := suite.issue("cs_test_003")
	assert.Equal(suite.T(), 1, license.TemplateVersion)

	// Install a harsher premium template after issuance.
	templates := NewTemplateService(suite.db)
	_, err := templates.CreateVersion(&CreateTemplateRequest{
		Tier:          models.LicenseTierPremium,
		StreamCap:     1,
		VideoCap:      1,
		ProducerSplit: 90,
		LicenseeSplit: 10,
		CreditLine:    "Prod. by Soundhaus",
		Jurisdiction:  "Germany",
	})
	require.NoError(suite.T(), err)

	var reloaded models.IssuedLicense
	require.NoError(suite.T(), suite.db.First(&reloaded, "id = ?", license.ID).Error)

	assert.Equal(suite.T(), 1, reloaded.TemplateVersion)
	assert.EqualValues(suite.T(), 1000000, reloaded.LimitsSnapshot["stream_cap"])
	assert.EqualValues(suite.T(), 50, reloaded.LimitsSnapshot["producer_split"])
}

func (suite *LicenseServiceTestSuite) TestVerifyByNumberAndID() {
	license := suite.issue("cs_test_004")

	byNumber, err := suite.licenses.VerifyLicense(license.LicenseNumber)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), byNumber.Valid)

	byID, err := suite.licenses.VerifyLicense(license.ID.String())
	require.NoError(suite.T(), err)
	assert.True(suite.T(), byID.Valid)
	assert.Equal(suite.T(), license.LicenseNumber, byID.License.LicenseNumber)
}

func (suite *LicenseServiceTestSuite) TestVerificationOmitsBuyerIdentity() {
	license := suite.issue("cs_test_010")

	for _, identifier := range []string{license.LicenseNumber, license.ID.String()} {
		result, err := suite.licenses.VerifyLicense(identifier)
		require.NoError(suite.T(), err)
		require.NotNil(suite.T(), result.License)
		assert.Equal(suite.T(), license.BeatTitle, result.License.BeatTitle)

		payload, err := json.Marshal(result)
		require.NoError(suite.T(), err)
		assert.NotContains(suite.T(), string(payload), "buyer@example.com")
		assert.NotContains(suite.T(), string(payload), "Alex Buyer")
	}

	// Revoked licenses still echo a summary; it stays scrubbed too.
	require.NoError(suite.T(), suite.licenses.RevokeLicense(license.ID))
	result, err := suite.licenses.VerifyLicense(license.LicenseNumber)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), result.License)

	payload, err := json.Marshal(result)
	require.NoError(suite.T(), err)
	assert.NotContains(suite.T(), string(payload), "buyer@example.com")
}

func (suite *LicenseServiceTestSuite) TestVerifyUnknownLicense() {
	result, err := suite.licenses.VerifyLicense("SHR-2099-999999")
	require.NoError(suite.T(), err)
	assert.False(suite.T(), result.Valid)
	assert.Equal(suite.T(), "License not found", result.Message)
}

func (suite *LicenseServiceTestSuite) TestVerifyDetectsTampering() {
	license := suite.issue("cs_test_005")

	require.NoError(suite.T(), suite.db.Model(&models.IssuedLicense{}).
		Where("id = ?", license.ID).
		Update("buyer_email", "attacker@example.com").Error)

	result, err := suite.licenses.VerifyLicense(license.LicenseNumber)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), result.Valid)
	assert.Contains(suite.T(), result.Message, "integrity")
}

func (suite *LicenseServiceTestSuite) TestRevokedLicenseFailsVerification() {
	license := suite.issue("cs_test_006")
	require.NoError(suite.T(), suite.licenses.RevokeLicense(license.ID))

	result, err := suite.licenses.VerifyLicense(license.LicenseNumber)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), result.Valid)
	assert.Contains(suite.T(), result.Message, "revoked")

	// Revocation is one-way; a second call finds nothing to flip.
	assert.ErrorIs(suite.T(), suite.licenses.RevokeLicense(license.ID), ErrLicenseNotFound)
}

func (suite *LicenseServiceTestSuite) TestIssuanceFailsWithoutTemplate() {
	require.NoError(suite.T(), suite.db.Model(&models.LicenseTemplate{}).
		Where("tier = ?", models.LicenseTierPremium).
		Update("active", false).Error)

	purchase := seedPurchase(suite.T(), suite.db, suite.beat, suite.offer, "cs_test_007")
	err := database.WithTransaction(suite.db, func(tx *gorm.DB) error {
		_, err := suite.licenses.IssueLicense(tx, purchase, suite.beat)
		return err
	})
	assert.ErrorIs(suite.T(), err, ErrTemplateUnavailable)
}

func TestLicenseServiceSuite(t *testing.T) {
	suite.Run(t, new(LicenseServiceTestSuite))
}
