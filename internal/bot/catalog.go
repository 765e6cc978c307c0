package bot

import (
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/flexyframe/artbot/core/telegram/callbacks"
	tghelpers "github.com/flexyframe/artbot/core/telegram/helpers"
	"github.com/flexyframe/artbot/core/telegram/format"
	"github.com/flexyframe/artbot/core/telegram/ui"
	"github.com/flexyframe/artbot/internal/catalog"
	"github.com/flexyframe/artbot/internal/views"
)

func (b *Bot) handleCatalog(c tele.Context) error {
	b.sessions.Set(tghelpers.BuildContext(c), c.Sender().ID, StateBrowsing, nil)
	return show(c, views.Categories(b.catalog.Categories()))
}

// handleCategory lists a category; without a payload it shows all categories.
func (b *Bot) handleCategory(c tele.Context) error {
	category := callbacks.CallbackPayload(c)
	if category == "" {
		return b.handleCatalog(c)
	}
	paintings := b.catalog.ByCategory(category)
	if len(paintings) == 0 {
		return callbacks.Answer(c, "Серия пуста")
	}
	b.sessions.Set(tghelpers.BuildContext(c), c.Sender().ID, StateBrowsing, map[string]string{"category": category})
	return show(c, views.PaintingList(category, paintings))
}

func (b *Bot) handlePainting(c tele.Context) error {
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return callbacks.Answer(c, "Кнопка устарела")
	}
	p, ok := b.catalog.ByID(id)
	if !ok {
		return show(c, views.PaintingNotFound())
	}
	b.sessions.Set(tghelpers.BuildContext(c), c.Sender().ID, StateItemSelected, map[string]string{
		"painting_id": strconv.FormatInt(p.ID, 10),
	})

	card := views.PaintingCard(p)
	if path := catalog.ImagePath(b.opts.ImagesDir, p); path != "" {
		photo := &tele.Photo{File: tele.FromDisk(path), Caption: card.Text}
		return tghelpers.SendPhoto(c, photo, card.Markup)
	}
	return show(c, card)
}

// handleInlineQuery answers inline catalog searches. An empty query lists
// the first paintings of the catalog.
func (b *Bot) handleInlineQuery(c tele.Context) error {
	q := c.Query()
	if q == nil {
		return nil
	}
	found := b.catalog.Search(q.Text)
	if q.Text == "" {
		found = b.catalog.All()
	}
	if len(found) > inlineLimit {
		found = found[:inlineLimit]
	}
	results := make(tele.Results, 0, len(found))
	for _, p := range found {
		results = append(results, ui.Article(strconv.FormatInt(p.ID, 10),
			p.Title+" · "+format.Rub(p.Price),
			p.Category,
			views.InlineArticle(p, b.opts.BotUsername)))
	}
	return c.Answer(&tele.QueryResponse{Results: results, CacheTime: 60})
}
