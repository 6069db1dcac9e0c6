package types

import "fmt"

// FieldName 标量字段的线上名称，同时用作 multipart 表单字段名与 JSON 键.
type FieldName string

const (
	FieldSharerName    FieldName = "sharer_name"
	FieldSharerContact FieldName = "sharer_contact"
	FieldVillage       FieldName = "village"
	FieldTaluka        FieldName = "taluka"
	FieldDistrict      FieldName = "district"
	FieldOldSurveyNo   FieldName = "old_survey_no"
	FieldNewSurveyNo   FieldName = "new_survey_no"
	FieldBlockNo       FieldName = "block_no"
	FieldZone          FieldName = "zone"
	FieldLandArea      FieldName = "land_area"
	FieldBuiltUpArea   FieldName = "built_up_area"
	FieldAreaUnit      FieldName = "area_unit"
	FieldRate          FieldName = "rate"
	FieldTotalPrice    FieldName = "total_price"
	FieldRoadTouch     FieldName = "road_touch"
	FieldLandmark      FieldName = "landmark"
	FieldNotes         FieldName = "notes"
	FieldMapLink       FieldName = "map_link"
	FieldFileType      FieldName = "file_type"
	FieldLandType      FieldName = "land_type"
	FieldTenure        FieldName = "tenure"
)

// Fields 记录的标量字段.
// 新建记录要求三个分类选择项与前两个字段（共享人、联系方式）非空.
type Fields struct {
	SharerName    string `json:"sharer_name"    rule:"required"`
	SharerContact string `json:"sharer_contact" rule:"required"`
	Village       string `json:"village"`
	Taluka        string `json:"taluka"`
	District      string `json:"district"`
	OldSurveyNo   string `json:"old_survey_no"`
	NewSurveyNo   string `json:"new_survey_no"`
	BlockNo       string `json:"block_no"`
	Zone          string `json:"zone"`
	LandArea      string `json:"land_area"`
	BuiltUpArea   string `json:"built_up_area"`
	AreaUnit      string `json:"area_unit"`
	Rate          string `json:"rate"`
	TotalPrice    string `json:"total_price"`
	RoadTouch     string `json:"road_touch"`
	Landmark      string `json:"landmark"`
	Notes         string `json:"notes"`
	MapLink       string `json:"map_link"`
	FileType      string `json:"file_type"      rule:"required"`
	LandType      string `json:"land_type"      rule:"required"`
	Tenure        string `json:"tenure"         rule:"required"`
}

// FieldSpec 字段表的一行：线上名称、展示标签与取址函数.
type FieldSpec struct {
	Name  FieldName
	Label string
	ref   func(*Fields) *string
}

// FieldTable 按展示顺序排列的字段表，仅用于渲染与按名访问.
var FieldTable = []FieldSpec{
	{FieldSharerName, "Sharer Name", func(f *Fields) *string { return &f.SharerName }},
	{FieldSharerContact, "Sharer Contact", func(f *Fields) *string { return &f.SharerContact }},
	{FieldVillage, "Village", func(f *Fields) *string { return &f.Village }},
	{FieldTaluka, "Taluka", func(f *Fields) *string { return &f.Taluka }},
	{FieldDistrict, "District", func(f *Fields) *string { return &f.District }},
	{FieldOldSurveyNo, "Old Survey No.", func(f *Fields) *string { return &f.OldSurveyNo }},
	{FieldNewSurveyNo, "New Survey No.", func(f *Fields) *string { return &f.NewSurveyNo }},
	{FieldBlockNo, "Block No.", func(f *Fields) *string { return &f.BlockNo }},
	{FieldZone, "Zone", func(f *Fields) *string { return &f.Zone }},
	{FieldLandArea, "Land Area", func(f *Fields) *string { return &f.LandArea }},
	{FieldBuiltUpArea, "Built-up Area", func(f *Fields) *string { return &f.BuiltUpArea }},
	{FieldAreaUnit, "Area Unit", func(f *Fields) *string { return &f.AreaUnit }},
	{FieldRate, "Rate", func(f *Fields) *string { return &f.Rate }},
	{FieldTotalPrice, "Total Price", func(f *Fields) *string { return &f.TotalPrice }},
	{FieldRoadTouch, "Road Touch", func(f *Fields) *string { return &f.RoadTouch }},
	{FieldLandmark, "Landmark", func(f *Fields) *string { return &f.Landmark }},
	{FieldNotes, "Notes", func(f *Fields) *string { return &f.Notes }},
	{FieldMapLink, "Map Link", func(f *Fields) *string { return &f.MapLink }},
	{FieldFileType, "File Type", func(f *Fields) *string { return &f.FileType }},
	{FieldLandType, "Land Type", func(f *Fields) *string { return &f.LandType }},
	{FieldTenure, "Tenure", func(f *Fields) *string { return &f.Tenure }},
}

var fieldIndex = func() map[FieldName]int {
	m := make(map[FieldName]int, len(FieldTable))
	for i, spec := range FieldTable {
		m[spec.Name] = i
	}

	return m
}()

// 分类选择项的建议取值，仅用于提示；校验只要求非空.
var (
	FileTypes = []string{"Title Clear Lands", "Under Litigation", "Power of Attorney", "Other"}
	LandTypes = []string{"Agriculture", "Non-Agriculture", "Residential", "Commercial", "Industrial"}
	Tenures   = []string{"Old Tenure", "New Tenure"}
)

// LookupField 按名称查找字段定义.
func LookupField(name FieldName) (FieldSpec, bool) {
	i, ok := fieldIndex[name]
	if !ok {
		return FieldSpec{}, false
	}

	return FieldTable[i], true
}

// Get 返回字段值.
func (f *Fields) Get(name FieldName) (string, bool) {
	spec, ok := LookupField(name)
	if !ok {
		return "", false
	}

	return *spec.ref(f), true
}

// Set 设置字段值，未知字段返回错误.
func (f *Fields) Set(name FieldName, value string) error {
	spec, ok := LookupField(name)
	if !ok {
		return fmt.Errorf("unknown field %q", name)
	}

	*spec.ref(f) = value

	return nil
}

// Each 按字段表顺序遍历.
func (f *Fields) Each(fn func(spec FieldSpec, value string)) {
	for _, spec := range FieldTable {
		fn(spec, *spec.ref(f))
	}
}

// Merge 用 other 中的非空字段覆盖当前值，返回被修改的字段名.
func (f *Fields) Merge(other Fields) []FieldName {
	var changed []FieldName

	for _, spec := range FieldTable {
		v := *spec.ref(&other)
		if v == "" {
			continue
		}

		dst := spec.ref(f)
		if *dst != v {
			*dst = v

			changed = append(changed, spec.Name)
		}
	}

	return changed
}
