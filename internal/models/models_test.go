package models

import (
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestProject_Fields(t *testing.T) {
	typ := reflect.TypeOf(Project{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:64")
	assertGormTag(t, typ, "Name", "not null")
	assertGormTag(t, typ, "DefaultCalendarID", "not null")
	assertGormTag(t, typ, "Active", "index")
	assertGormTag(t, typ, "Tasks", "foreignKey:ProjectID")
	assertGormTag(t, typ, "Dependencies", "foreignKey:ProjectID")

	assertFieldType(t, typ, "PlannedStart", "time.Time")
	assertFieldType(t, typ, "MustFinishBy", "*time.Time")
	assertFieldType(t, typ, "ProjectFinish", "*time.Time")
}

func TestCalendar_Fields(t *testing.T) {
	typ := reflect.TypeOf(Calendar{})
	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "Workdays", "not null")
	assertGormTag(t, typ, "Exceptions", "foreignKey:CalendarID")
	assertFieldType(t, typ, "Workdays", "int")

	ex := reflect.TypeOf(CalendarException{})
	assertGormTag(t, ex, "CalendarID", "primaryKey")
	assertGormTag(t, ex, "Date", "primaryKey")
	assertFieldType(t, ex, "Date", "time.Time")
}

func TestTask_Fields(t *testing.T) {
	typ := reflect.TypeOf(Task{})

	assertGormTag(t, typ, "ProjectID", "primaryKey")
	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ParentID", "index")
	assertGormTag(t, typ, "Kind", "default:task")
	assertGormTag(t, typ, "ConstraintType", "default:asap")
	assertGormTag(t, typ, "Violations", "type:text")

	assertFieldType(t, typ, "ParentID", "*string")
	assertFieldType(t, typ, "RemainingDuration", "*int")
	assertFieldType(t, typ, "TotalFloat", "*int")
	assertFieldType(t, typ, "FreeFloat", "*int")
	assertFieldType(t, typ, "ActualStart", "*time.Time")
	assertFieldType(t, typ, "EarlyStart", "*time.Time")
}

func TestDependency_CompositeKey(t *testing.T) {
	typ := reflect.TypeOf(Dependency{})
	for _, f := range []string{"ProjectID", "PredecessorID", "SuccessorID"} {
		assertGormTag(t, typ, f, "primaryKey")
	}
	assertGormTag(t, typ, "Type", "default:FS")
	assertFieldType(t, typ, "Lag", "int")
}

func TestBaseline_Fields(t *testing.T) {
	typ := reflect.TypeOf(Baseline{})
	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ProjectID", "uniqueIndex:idx_project_number")
	assertGormTag(t, typ, "Number", "uniqueIndex:idx_project_number")
	assertGormTag(t, typ, "Tasks", "foreignKey:BaselineID")
	assertFieldType(t, typ, "DeletedAt", "*time.Time")

	bt := reflect.TypeOf(BaselineTask{})
	assertGormTag(t, bt, "BaselineID", "primaryKey")
	assertGormTag(t, bt, "TaskID", "primaryKey")
}

func TestTaskChange_Fields(t *testing.T) {
	typ := reflect.TypeOf(TaskChange{})
	assertGormTag(t, typ, "ID", "autoIncrement")
	assertGormTag(t, typ, "ProjectID", "index")
	assertGormTag(t, typ, "Detail", "type:text")
}
