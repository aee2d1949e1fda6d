// SPDX-License-Identifier: AGPL-3.0-or-later

package configscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanYAML_ClassifiesByKeywordInKey(t *testing.T) {
	yaml := `
api:
  endpoint: "http://orders.svc/api"
kafka:
  topic: "orders.created"
database:
  table: "orders"
cache:
  key: "orders:*"
`
	cd, err := ScanYAML([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, []string{"http://orders.svc/api"}, cd.Endpoints)
	assert.Equal(t, []string{"orders.created"}, cd.Topics)
	assert.Equal(t, []string{"orders"}, cd.Tables)
	assert.Equal(t, []string{"orders:*"}, cd.Prefixes)
}

func TestScanYAML_RecursesThroughNestedStructuresRegardlessOfMatch(t *testing.T) {
	yaml := `
services:
  orders:
    settings:
      nested:
        url: "http://deep.svc"
`
	cd, err := ScanYAML([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, []string{"http://deep.svc"}, cd.Endpoints)
}

func TestScanYAML_SequenceOfScalarsIsCollected(t *testing.T) {
	yaml := `
topics:
  - orders.created
  - orders.cancelled
`
	cd, err := ScanYAML([]byte(yaml))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"orders.created", "orders.cancelled"}, cd.Topics)
}

func TestScanYAML_BareKafkaKeyMatchesTooSameAsXML(t *testing.T) {
	// spec.md section 6 lists "topic|kafka" as one keyword group
	// irrespective of format: a bare "kafka" key matches in YAML too.
	yaml := `
kafka: "some-broker-address"
`
	cd, err := ScanYAML([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, []string{"some-broker-address"}, cd.Topics)
}

func TestScanYAML_DeduplicatesPreservingFirstOccurrenceOrder(t *testing.T) {
	yaml := `
first_url: "http://a.svc"
second_url: "http://b.svc"
third_url: "http://a.svc"
`
	cd, err := ScanYAML([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.svc", "http://b.svc"}, cd.Endpoints)
}

func TestScanYAML_EmptyDocumentYieldsEmptyConfigData(t *testing.T) {
	cd, err := ScanYAML([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, cd.Endpoints)
	assert.Empty(t, cd.Topics)
	assert.Empty(t, cd.Tables)
	assert.Empty(t, cd.Prefixes)
}

func TestScanYAML_InvalidYAMLReturnsError(t *testing.T) {
	_, err := ScanYAML([]byte("key: [unterminated"))
	assert.Error(t, err)
}

func TestScanXML_ClassifiesByElementAndAttributeNames(t *testing.T) {
	xml := `<config>
  <endpoint url="http://orders.svc/api"/>
  <kafka topic="orders.created"/>
  <table>orders</table>
  <redis key="orders:*"/>
</config>`
	cd, err := ScanXML([]byte(xml))
	require.NoError(t, err)

	assert.Contains(t, cd.Endpoints, "http://orders.svc/api")
	assert.Contains(t, cd.Topics, "orders.created")
	assert.Contains(t, cd.Tables, "orders")
	assert.Contains(t, cd.Prefixes, "orders:*")
}

func TestScanXML_BareKafkaElementMatches(t *testing.T) {
	xml := `<config><kafka>broker.internal:9092</kafka></config>`
	cd, err := ScanXML([]byte(xml))
	require.NoError(t, err)
	assert.Contains(t, cd.Topics, "broker.internal:9092")
}

func TestScanXML_NestedChildrenAreWalked(t *testing.T) {
	xml := `<root><services><orders><url>http://deep.svc</url></orders></services></root>`
	cd, err := ScanXML([]byte(xml))
	require.NoError(t, err)
	assert.Contains(t, cd.Endpoints, "http://deep.svc")
}

func TestScanXML_BlankTextContentIsIgnored(t *testing.T) {
	xml := `<config>
  <table>
  </table>
</config>`
	cd, err := ScanXML([]byte(xml))
	require.NoError(t, err)
	assert.Empty(t, cd.Tables)
}

func TestScanXML_InvalidXMLReturnsError(t *testing.T) {
	_, err := ScanXML([]byte("<config><unterminated>"))
	assert.Error(t, err)
}
