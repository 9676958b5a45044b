package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
)

func raw(body string) advisory.RawContent {
	return advisory.RawContent{URL: "https://example.test/page", StatusCode: 200, Body: []byte(body)}
}

func TestRegistryCoversAllKinds(t *testing.T) {
	t.Parallel()

	kinds := []advisory.SourceKind{
		advisory.KindStateDept,
		advisory.KindFCDO,
		advisory.KindSmartraveller,
		advisory.KindReliefWeb,
		advisory.KindFeed,
	}
	for _, kind := range kinds {
		ex, err := New(kind)
		require.NoError(t, err)
		require.Equal(t, kind, ex.Kind())
	}

	_, err := New("carrier-pigeon")
	require.Error(t, err)
}

const stateDeptPage = `
<html><body>
<table class="advisories">
  <thead><tr><th>Advisory</th><th>Level</th><th>Date Updated</th></tr></thead>
  <tbody>
    <tr>
      <td><a href="/content/travel/en/traveladvisories/france.html">France</a></td>
      <td>Level 2: Exercise Increased Caution</td>
      <td>November 1, 2023</td>
    </tr>
    <tr>
      <td><a href="/content/travel/en/traveladvisories/somalia.html">Somalia</a></td>
      <td>Level 4: Do Not Travel</td>
      <td>October 12, 2023</td>
    </tr>
  </tbody>
</table>
</body></html>`

func TestStateDeptExtract(t *testing.T) {
	t.Parallel()

	ex := &StateDeptExtractor{}
	got, err := ex.Extract(raw(stateDeptPage))
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, "France", got[0].Country)
	require.Equal(t, "Level 2: Exercise Increased Caution", got[0].RiskText)
	require.Equal(t, "November 1, 2023", got[0].DateText)
	require.Equal(t, "https://travel.state.gov/content/travel/en/traveladvisories/france.html", got[0].Link)
	require.NotEmpty(t, got[0].RawText)

	require.Equal(t, "Somalia", got[1].Country)
	require.Equal(t, "Level 4: Do Not Travel", got[1].RiskText)
}

func TestStateDeptStructureChanged(t *testing.T) {
	t.Parallel()

	ex := &StateDeptExtractor{}
	_, err := ex.Extract(raw(`<html><body><div>maintenance page</div></body></html>`))
	require.ErrorIs(t, err, advisory.ErrStructureChanged)
}

func TestStateDeptEmptyTableIsNotAnError(t *testing.T) {
	t.Parallel()

	page := `<html><body><table><thead><tr><th>Advisory</th></tr></thead><tbody></tbody></table></body></html>`
	ex := &StateDeptExtractor{}
	got, err := ex.Extract(raw(page))
	require.NoError(t, err)
	require.Empty(t, got)
}

const fcdoPage = `
<html><body><main id="content">
<ul>
  <li>
    <a href="/foreign-travel-advice/france">France</a>
    <strong>See our travel advice before travelling</strong>
    <p>Latest update: information on planned strikes.</p>
  </li>
  <li>
    <a href="/foreign-travel-advice/kenya">Kenya</a>
    <p>FCDO advises against all but essential travel to border regions.</p>
  </li>
</ul>
</main></body></html>`

func TestFCDOExtract(t *testing.T) {
	t.Parallel()

	ex := &FCDOExtractor{}
	got, err := ex.Extract(raw(fcdoPage))
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, "France", got[0].Country)
	require.Equal(t, "https://www.gov.uk/foreign-travel-advice/france", got[0].Link)
	require.Contains(t, got[0].Summary, "planned strikes")

	require.Equal(t, "Kenya", got[1].Country)
	require.Contains(t, got[1].Summary, "all but essential travel")
}

func TestFCDOStructureChanged(t *testing.T) {
	t.Parallel()

	ex := &FCDOExtractor{}
	_, err := ex.Extract(raw(`<html><body><p>gateway error</p></body></html>`))
	require.ErrorIs(t, err, advisory.ErrStructureChanged)
}

func TestFCDOEmptyIndexIsNotAnError(t *testing.T) {
	t.Parallel()

	ex := &FCDOExtractor{}
	got, err := ex.Extract(raw(`<html><body><main id="content"><ul></ul></main></body></html>`))
	require.NoError(t, err)
	require.Empty(t, got)
}

const smartravellerPage = `
<html><body>
<div class="view-destinations">
  <article class="destination-card">
    <h3><a href="/destinations/asia/japan">Japan</a></h3>
    <span class="advice-level">Exercise normal safety precautions</span>
    <p>Japan has a low crime rate.</p>
    <time datetime="2023-10-30"></time>
  </article>
</div>
</body></html>`

func TestSmartravellerExtract(t *testing.T) {
	t.Parallel()

	ex := &SmartravellerExtractor{}
	got, err := ex.Extract(raw(smartravellerPage))
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.Equal(t, "Japan", got[0].Country)
	require.Equal(t, "Exercise normal safety precautions", got[0].RiskText)
	require.Equal(t, "Japan has a low crime rate.", got[0].Summary)
	require.Equal(t, "2023-10-30", got[0].DateText)
	require.Equal(t, "https://www.smartraveller.gov.au/destinations/asia/japan", got[0].Link)
}

func TestSmartravellerSkipsWrapperContainers(t *testing.T) {
	t.Parallel()

	// The wrapper div's class also contains "destination"; only the leaf
	// cards must yield candidates.
	page := `
<html><body>
<div class="view-destinations">
  <div class="destination-list">
    <article class="destination-card">
      <h3><a href="/destinations/asia/japan">Japan</a></h3>
      <span class="advice-level">Exercise normal safety precautions</span>
      <p>Japan has a low crime rate.</p>
    </article>
    <article class="destination-card">
      <h3><a href="/destinations/africa/sudan">Sudan</a></h3>
      <span class="advice-level">Do not travel</span>
      <p>Armed conflict is ongoing.</p>
    </article>
  </div>
</div>
</body></html>`

	ex := &SmartravellerExtractor{}
	got, err := ex.Extract(raw(page))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Japan", got[0].Country)
	require.Equal(t, "Sudan", got[1].Country)
}

func TestSmartravellerDistinguishesEmptyFromDrift(t *testing.T) {
	t.Parallel()

	ex := &SmartravellerExtractor{}

	got, err := ex.Extract(raw(`<html><body><div class="view-destinations"></div></body></html>`))
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = ex.Extract(raw(`<html><body><div id="shiny-new-layout"></div></body></html>`))
	require.ErrorIs(t, err, advisory.ErrStructureChanged)
}

const reliefWebResponseBody = `{
  "data": [
    {"fields": {
      "title": "Sudan: Escalating conflict in Khartoum",
      "body": "Fighting continues across the capital.",
      "country": [{"name": "Sudan"}],
      "date": {"created": "2023-11-02T08:00:00+00:00"},
      "url": "https://reliefweb.int/report/sudan/1"
    }},
    {"fields": {
      "title": "Global overview",
      "body": "No country attribution.",
      "country": [],
      "date": {"created": "2023-11-02T09:00:00+00:00"}
    }}
  ]
}`

func TestReliefWebExtract(t *testing.T) {
	t.Parallel()

	ex := &ReliefWebExtractor{}
	got, err := ex.Extract(raw(reliefWebResponseBody))
	require.NoError(t, err)

	// The country-less report is skipped, not an error.
	require.Len(t, got, 1)
	require.Equal(t, "Sudan", got[0].Country)
	require.Equal(t, "Fighting continues across the capital.", got[0].Summary)
	require.Equal(t, "2023-11-02T08:00:00+00:00", got[0].DateText)
}

func TestReliefWebStructureChanged(t *testing.T) {
	t.Parallel()

	ex := &ReliefWebExtractor{}

	_, err := ex.Extract(raw(`<html>definitely not json</html>`))
	require.ErrorIs(t, err, advisory.ErrStructureChanged)

	_, err = ex.Extract(raw(`{"results": []}`))
	require.ErrorIs(t, err, advisory.ErrStructureChanged)
}

func TestReliefWebEmptyDataIsNotAnError(t *testing.T) {
	t.Parallel()

	ex := &ReliefWebExtractor{}
	got, err := ex.Extract(raw(`{"data": []}`))
	require.NoError(t, err)
	require.Empty(t, got)
}

const alertFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
  <title>Travel Alerts</title>
  <item>
    <title>Haiti: Security situation deteriorating</title>
    <description>Armed gang activity has increased in Port-au-Prince.</description>
    <link>https://alerts.example.test/haiti</link>
    <pubDate>Thu, 02 Nov 2023 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Iceland - Volcanic activity</title>
    <description>Seismic activity near Grindavik.</description>
    <link>https://alerts.example.test/iceland</link>
  </item>
</channel></rss>`

func TestFeedExtract(t *testing.T) {
	t.Parallel()

	ex := &FeedExtractor{}
	got, err := ex.Extract(raw(alertFeed))
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, "Haiti", got[0].Country)
	require.Equal(t, "Security situation deteriorating", got[0].RiskText)
	require.Equal(t, "Armed gang activity has increased in Port-au-Prince.", got[0].Summary)
	require.Equal(t, "2023-11-02", got[0].DateText)

	require.Equal(t, "Iceland", got[1].Country)
	require.Equal(t, "Volcanic activity", got[1].RiskText)
}

func TestFeedStructureChanged(t *testing.T) {
	t.Parallel()

	ex := &FeedExtractor{}
	_, err := ex.Extract(raw(`<html><body>not a feed</body></html>`))
	require.ErrorIs(t, err, advisory.ErrStructureChanged)
}
