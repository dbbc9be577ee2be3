package newebpay

import (
	"net/url"
	"sync"
)

// formDataPool pools url.Values for the cancel request body
var formDataPool = sync.Pool{
	New: func() interface{} {
		return make(url.Values, 4)
	},
}

// getFormData retrieves an empty url.Values from the pool
func getFormData() url.Values {
	formData := formDataPool.Get().(url.Values)
	for k := range formData {
		delete(formData, k)
	}
	return formData
}

// putFormData clears the signed payload and returns the values to the pool
func putFormData(formData url.Values) {
	for k := range formData {
		delete(formData, k)
	}
	formDataPool.Put(formData)
}
