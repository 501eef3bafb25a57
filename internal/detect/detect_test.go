package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() ([]string, []map[string]string) {
	headers := []string{"이름", "환자주소", "전화번호", "비고"}
	rows := []map[string]string{
		{"이름": "홍길동", "환자주소": "서울특별시 강남구 테헤란로 152", "전화번호": "010-1234-5678", "비고": "초진"},
		{"이름": "김철수", "환자주소": "부산 해운대구 우동 1408", "전화번호": "010-2222-3333", "비고": ""},
		{"이름": "이영희", "환자주소": "  ", "전화번호": "010-4444-5555", "비고": "재진"},
		{"이름": "박민수", "환자주소": "경기도 수원시 영통구", "전화번호": "02-555-6666", "비고": "ok"},
	}
	return headers, rows
}

func TestDetect(t *testing.T) {
	headers, rows := sampleTable()

	d := Detect(headers, rows)
	require.NotNil(t, d)
	assert.Equal(t, "환자주소", d.Column)
	assert.Equal(t, 100.0, d.HeaderMatch)
	assert.Equal(t, 100.0, d.ValueMatch)
	assert.InDelta(t, 100.0, d.Confidence, 1e-9)
	assert.True(t, d.Auto)
	assert.Equal(t, []string{"서울특별시 강남구 테헤란로 152", "부산 해운대구 우동 1408", "경기도 수원시 영통구"}, d.SampleValues)
}

func TestDetect_NoData(t *testing.T) {
	assert.Nil(t, Detect(nil, nil))
	assert.Nil(t, Detect([]string{"a"}, nil))
	assert.Nil(t, Detect([]string{"name"}, []map[string]string{{"name": "abc"}}))
}

func TestDetect_ValuesOnlyBelowAutoThreshold(t *testing.T) {
	headers := []string{"col1", "col2"}
	rows := []map[string]string{
		{"col1": "서울특별시 중구 세종대로 110", "col2": "x"},
		{"col1": "대전광역시 서구 둔산로 100", "col2": "y"},
	}

	d := Detect(headers, rows)
	require.NotNil(t, d)
	assert.Equal(t, "col1", d.Column)
	// chỉ có điểm giá trị: 100 × 0.4
	assert.InDelta(t, 40.0, d.Confidence, 1e-9)
	assert.False(t, d.Auto)
}

func TestHeaderScore(t *testing.T) {
	testCases := []struct {
		header string
		want   float64
	}{
		{"주소", 100},
		{"Home Address", 100},
		{"도로명", 90},
		{"ADDR1", 85},
		{"거주지", 70},
		{"Location", 60},
		{"고객명", 30},
		{"주문번호", 40},
		{"지역", 30},
		{"phone", 0},
	}
	for _, tc := range testCases {
		t.Run(tc.header, func(t *testing.T) {
			assert.Equal(t, tc.want, HeaderScore(tc.header))
		})
	}
}

func TestValueScore(t *testing.T) {
	rows := []map[string]string{
		{"v": "서울"},
		{"v": "서울특별시 중구"},
		{"v": "hello world"},
		{"v": "101동 1203호"},
	}
	// "서울" quá ngắn nên bị bỏ qua
	assert.InDelta(t, 200.0/3, ValueScore(rows, "v"), 1e-9)
	assert.Zero(t, ValueScore(rows, "missing"))
}

func TestValueScore_SamplesFirstTenRows(t *testing.T) {
	var rows []map[string]string
	for i := 0; i < 10; i++ {
		rows = append(rows, map[string]string{"v": "no match"})
	}
	rows = append(rows, map[string]string{"v": "서울특별시 중구"})
	assert.Zero(t, ValueScore(rows, "v"))
}

func TestCandidates(t *testing.T) {
	headers, rows := sampleTable()
	cands := Candidates(headers, rows)

	require.NotEmpty(t, cands)
	assert.Equal(t, "환자주소", cands[0].Name)
	assert.Contains(t, cands[0].Reason, "신뢰도: 100.0%")
	for _, c := range cands {
		assert.Greater(t, c.Confidence, CandidateThreshold)
	}
}

func TestColumnHelpers(t *testing.T) {
	headers, rows := sampleTable()
	assert.True(t, HasColumn(headers, "비고"))
	assert.False(t, HasColumn(headers, "주소"))
	assert.Equal(t, []string{"홍길동", "김철수", "이영희", "박민수"}, Column(rows, "이름"))
}
