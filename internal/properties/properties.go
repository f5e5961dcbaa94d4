package properties

import "os"

// RootPath is the data root; scene archives live under <root>/archive and
// products are written under <root>/products unless overridden per run.
func RootPath() string {
	return os.Getenv("ROOT_PATH")
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}

func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}

func ArchiveClientID() string {
	return os.Getenv("ARCHIVE_CLIENT_ID")
}

func ArchiveClientSecret() string {
	return os.Getenv("ARCHIVE_CLIENT_SECRET")
}

func ArchiveTokenURL() string {
	return os.Getenv("ARCHIVE_TOKEN_URL")
}

func ArchiveBaseURL() string {
	return os.Getenv("ARCHIVE_BASE_URL")
}
