package pipeline

// Notices are the user-facing messages sent when a post cannot be delivered.
// Each format receives the link as it appeared in the message; SendFailed
// receives the error text and the rendered card.
type Notices struct {
	FetchFailed string
	Unavailable string
	SendFailed  string
	MediaFailed string
}

// EnglishNotices is the default set.
var EnglishNotices = Notices{
	FetchFailed: "❌ Post unavailable, try again later: %s",
	Unavailable: "❌ Post is unavailable (private, deleted or age-restricted): %s",
	SendFailed:  "❌ Failed to send: %s\n\n%s",
	MediaFailed: "⚠️ Media could not be loaded",
}

// RussianNotices follows the wording of the original bot.
var RussianNotices = Notices{
	FetchFailed: "❌ Не удалось получить пост, попробуйте позже: %s",
	Unavailable: "❌ Твит недоступен (возможно приватный, удалён или 18+): %s",
	SendFailed:  "❌ Ошибка при отправке: %s\n\n%s",
	MediaFailed: "⚠️ Не удалось загрузить медиа",
}
