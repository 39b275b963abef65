package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalAccounting(t *testing.T) {
	v := viper.New()
	v.Set("accounting.start", "2020-01-01")
	v.Set("accounting.liabilityIntervalMonths", 24)

	cfg, err := unmarshalAccounting(v)
	require.NoError(t, err)
	require.NotNil(t, cfg.AccountingStart)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), *cfg.AccountingStart)
	assert.Equal(t, 24, cfg.LiabilityIntervalMonths)
}

func TestUnmarshalAccounting_EmptyStartMeansUnbounded(t *testing.T) {
	v := viper.New()
	v.Set("accounting.start", "  ")
	v.Set("accounting.liabilityIntervalMonths", 36)

	cfg, err := unmarshalAccounting(v)
	require.NoError(t, err)
	assert.Nil(t, cfg.AccountingStart)
}

func TestUnmarshalAccounting_RejectsBadValues(t *testing.T) {
	v := viper.New()
	v.Set("accounting.start", "01.01.2020")
	v.Set("accounting.liabilityIntervalMonths", 36)
	_, err := unmarshalAccounting(v)
	assert.Error(t, err)

	v = viper.New()
	v.Set("accounting.start", "")
	v.Set("accounting.liabilityIntervalMonths", 0)
	_, err = unmarshalAccounting(v)
	assert.Error(t, err)
}

func TestStaticHolder(t *testing.T) {
	cfg := DefaultAccountingConfig()
	holder := NewStaticAccountingConfigHolder(cfg)
	assert.Equal(t, cfg, holder.Get())
}
