package extract

import (
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/medwatch/contentprocessor/internal/contentprocessor/model"
)

const (
	chainSequenceId    = "sequenceId"
	chainTitle         = "title"
	chainContent       = "content"
	chainPublished     = "publishedDate"
	chainEstPublished  = "estimatedPublishedDate"
	chainUrl           = "url"
	chainSourceId      = "source,id"
	chainSourceName    = "source,name"
	chainSourceUrl     = "source,homeUrl"
	chainSourceLogoUrl = "source,logoUrl"
	chainCategory      = "source,category"
	chainRank          = "source,editorialRank"
	chainCountry       = "location,country"
	chainImageUrl      = "media,image,url"
)

const publishedDateLayout = "2006-01-02"

// articleChains is the full set of fields read from upstream article
// payloads.
var articleChains = ParseChains([]string{
	chainSequenceId,
	chainTitle,
	chainContent,
	chainPublished,
	chainEstPublished,
	chainUrl,
	chainSourceId,
	chainSourceName,
	chainSourceUrl,
	chainSourceLogoUrl,
	chainCategory,
	chainRank,
	chainCountry,
	chainImageUrl,
})

// Article parses one raw xml payload into an Article. The sequence id is
// required; every other field degrades to its zero value when missing.
func Article(payload string) (*model.Article, error) {
	fields, err := Fields(payload, articleChains)
	if err != nil {
		return nil, err
	}

	sequenceId, err := strconv.ParseInt(fields[chainSequenceId], 10, 64)
	if err != nil {
		return nil, errors.Errorf("article payload has no usable sequence id (%q)", fields[chainSequenceId])
	}

	// Source ids are sometimes absent or junk upstream; treat those as 0
	// rather than dropping the article.
	sourceId, err := strconv.Atoi(fields[chainSourceId])
	if err != nil {
		sourceId = 0
	}

	return &model.Article{
		SequenceId:    sequenceId,
		Title:         fields[chainTitle],
		Content:       fields[chainContent],
		Url:           fields[chainUrl],
		SourceId:      sourceId,
		SourceName:    fields[chainSourceName],
		SourceUrl:     fields[chainSourceUrl],
		Country:       fields[chainCountry],
		Category:      fields[chainCategory],
		EditorialRank: fields[chainRank],
		PublishDate:   publishDate(fields[chainPublished], fields[chainEstPublished]),
		RecordDate:    time.Now().UTC(),
		ImageUrl:      fields[chainImageUrl],
		SourceLogoUrl: fields[chainSourceLogoUrl],
		RawXml:        payload,
	}, nil
}

// publishDate parses the published date, falling back to the estimated
// published date, then to nil. Upstream dates carry a time component we do
// not trust; only the day part is kept.
func publishDate(published string, estimated string) *time.Time {
	for _, value := range []string{published, estimated} {
		if len(value) < len(publishedDateLayout) {
			continue
		}
		parsed, err := time.Parse(publishedDateLayout, value[:len(publishedDateLayout)])
		if err == nil {
			return &parsed
		}
	}
	return nil
}
