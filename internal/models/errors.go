package models

import "errors"

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrRecordNotFound  = errors.New("record not found")
	ErrDuplicateRecord = errors.New("record already exists")
	ErrProductNotFound = errors.New("product not found")
)
