package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, "error.not_found", "No matching user or code was found.")
	message.SetString(lang, "error.already_linked", "You already have an Emby account.")
	message.SetString(lang, "error.no_linked_account", "You do not have an Emby account yet.")
	message.SetString(lang, "error.account_banned", "This Emby account is banned.")
	message.SetString(lang, "error.invalid_or_used_code", "The code is invalid or has already been used.")
	message.SetString(lang, "error.registration_not_allowed", "Registration is closed and you have no invite.")
	message.SetString(lang, "error.policy_violation", "You are not allowed to do that.")
	message.SetString(lang, "error.provider_error", "The Emby server could not complete the request. Please try again later.")
	message.SetString(lang, "error.invalid_argument", "The request is invalid.")
	message.SetString(lang, "error.unavailable", "This feature is not available.")
	message.SetString(lang, "error.unauthorized", "Missing or invalid caller credentials.")
	message.SetString(lang, "error.rate_limited", "Too many commands, slow down.")
	message.SetString(lang, "error.conflict", "The same request is already being processed.")
	message.SetString(lang, "error.internal", "Something went wrong.")

	message.SetString(lang, "account.created", "Account %s created.")
	message.SetString(lang, "password.reset", "Your password has been reset.")
}
