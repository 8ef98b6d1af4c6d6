package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.SimplifiedChinese

	message.SetString(lang, "error.not_found", "未找到对应的用户或邀请码。")
	message.SetString(lang, "error.already_linked", "您已经拥有 Emby 账号。")
	message.SetString(lang, "error.no_linked_account", "您还没有 Emby 账号。")
	message.SetString(lang, "error.account_banned", "该 Emby 账号已被禁用。")
	message.SetString(lang, "error.invalid_or_used_code", "邀请码无效或已被使用。")
	message.SetString(lang, "error.registration_not_allowed", "当前未开放注册，且您没有注册资格。")
	message.SetString(lang, "error.policy_violation", "您没有权限执行此操作。")
	message.SetString(lang, "error.provider_error", "Emby 服务器处理失败，请稍后重试。")
	message.SetString(lang, "error.invalid_argument", "请求参数无效。")
	message.SetString(lang, "error.unavailable", "该功能未启用。")
	message.SetString(lang, "error.unauthorized", "缺少或无效的调用凭证。")
	message.SetString(lang, "error.rate_limited", "操作过于频繁，请稍后再试。")
	message.SetString(lang, "error.conflict", "相同的请求正在处理中。")
	message.SetString(lang, "error.internal", "发生未知错误。")

	message.SetString(lang, "account.created", "账号 %s 创建成功。")
	message.SetString(lang, "password.reset", "您的密码已重置。")
}
