package ui

import (
	"github.com/AlecAivazis/survey/v2"
)

// Confirm asks a yes/no question.
func Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}
	err := survey.AskOne(prompt, &result)
	return result, err
}

// Password prompts for a secret without echoing it.
func Password(message, help string) (string, error) {
	var result string
	prompt := &survey.Password{
		Message: message,
		Help:    help,
	}
	err := survey.AskOne(prompt, &result, survey.WithValidator(survey.Required))
	return result, err
}
