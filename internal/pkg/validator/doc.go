// Package validator validates request structs.
//
// Handlers depend on the Validator interface; V10Validator implements it with
// go-playground/validator v10 and English messages keyed by the json field name.
package validator
