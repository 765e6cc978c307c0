package ui

import tele "gopkg.in/telebot.v4"

// Article builds an HTML inline-query result. id must be unique within one
// answer; description is the grey line under the title.
func Article(id, title, description, html string) *tele.ArticleResult {
	r := &tele.ArticleResult{
		Title:       title,
		Description: description,
		Text:        html,
	}
	r.ParseMode = tele.ModeHTML
	r.SetResultID(id)
	return r
}
