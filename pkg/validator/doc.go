// Package validator provides small composable validation rules.
//
// Rules are values built eagerly and checked by Apply, which collects every
// failure into ValidationErrors:
//
//	err := validator.Apply(
//		validator.RequiredTime("anchor_time", ev.AnchorTime),
//		validator.RequiredSlice("recipients", ev.Recipients),
//	)
//
// Callers usually join the result with their own sentinel so errors.Is keeps working.
package validator
