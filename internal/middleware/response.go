package middleware

// handlerと同じ {success, message} の形
func errorJSON(msg string) map[string]any {
	return map[string]any{
		"success": false,
		"message": msg,
	}
}
