package constants

type LanguageType string

const (
	LanguageJava LanguageType = "java"
)
