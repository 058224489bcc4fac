package adapter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"tinygo.org/x/bluetooth"
)

type fakeAdvertisement struct {
	name     string
	services []bluetooth.UUID
}

func (a fakeAdvertisement) LocalName() string { return a.name }

func (a fakeAdvertisement) HasServiceUUID(u bluetooth.UUID) bool {
	for _, s := range a.services {
		if s == u {
			return true
		}
	}
	return false
}

func TestMatches(t *testing.T) {
	printerSvc := bluetooth.New16BitUUID(0x18f0)
	serialSvc := bluetooth.New16BitUUID(0xffe0)
	hints := []bluetooth.UUID{printerSvc, serialSvc}

	testCases := []struct {
		name string
		adv  fakeAdvertisement
		opts RequestOptions
		want bool
	}{
		{"accept all unnamed", fakeAdvertisement{}, RequestOptions{AcceptAll: true}, true},
		{"accept all ignores prefix", fakeAdvertisement{name: "Speaker"}, RequestOptions{AcceptAll: true, NamePrefix: "MPT"}, true},
		{"prefix match", fakeAdvertisement{name: "MPT-II"}, RequestOptions{NamePrefix: "MPT"}, true},
		{"prefix is case sensitive", fakeAdvertisement{name: "mpt-ii"}, RequestOptions{NamePrefix: "MPT"}, false},
		{"prefix mismatch", fakeAdvertisement{name: "Speaker"}, RequestOptions{NamePrefix: "MPT"}, false},
		{"service hint", fakeAdvertisement{services: []bluetooth.UUID{serialSvc}}, RequestOptions{}, true},
		{"unrelated service", fakeAdvertisement{services: []bluetooth.UUID{bluetooth.New16BitUUID(0x180d)}}, RequestOptions{}, false},
		{"nothing requested", fakeAdvertisement{name: "MPT-II"}, RequestOptions{}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, matches(tc.adv, tc.opts, hints))
		})
	}

	assert.False(t, matches(fakeAdvertisement{services: []bluetooth.UUID{printerSvc}}, RequestOptions{}, nil))
}

func TestScanError(t *testing.T) {
	testCases := []struct {
		err        error
		permission bool
	}{
		{errors.New("Permission denied"), true},
		{errors.New("org.bluez.Error.NotAuthorized: Not Authorized"), true},
		{errors.New("bluetooth adapter powered off"), false},
		{errors.New("scan already in progress"), false},
	}

	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			err := scanError(tc.err)
			assert.Equal(t, tc.permission, errors.Is(err, ErrPermission))
			assert.Contains(t, err.Error(), tc.err.Error())
			if !tc.permission {
				assert.ErrorIs(t, err, tc.err)
			}
		})
	}
}

func TestPropertiesFromGATT(t *testing.T) {
	testCases := []struct {
		flags uint32
		want  Properties
	}{
		{0, 0},
		{0x02, PropRead},
		{0x04, PropWriteWithoutResponse},
		{0x08, PropWrite},
		{0x0C, PropWrite | PropWriteWithoutResponse},
		{0x10, PropNotify},
		{0x20, PropNotify},
		{0x1A, PropRead | PropWrite | PropNotify},
		{0x01, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.want.String(), func(t *testing.T) {
			got := propertiesFromGATT(bluetooth.CharacteristicPermissions(tc.flags))
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.flags&0x0C != 0, got.CanWrite())
		})
	}
}
