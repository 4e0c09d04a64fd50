package service

import "errors"

var ErrEmptyHistory = errors.New("error order history is empty")
