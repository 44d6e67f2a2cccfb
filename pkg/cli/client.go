package cli

import (
	"github.com/beam-cloud/kbpicker/pkg/picker"
)

// newPickerClient builds a gateway client with the status cache selected in config
func newPickerClient() (*picker.Client, error) {
	store, err := picker.NewStatusStore(appConfig.Client.StatusCache, appConfig.Database.Redis)
	if err != nil {
		return nil, err
	}
	return picker.NewClient(appConfig.Client, picker.NewStatusCache(store)), nil
}
