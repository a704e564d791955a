package domain

import (
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestError(t *testing.T) {
	Convey("Given a domain Error", t, func() {
		cause := errors.New("boom")
		err := &Error{Op: "create", Bucket: "photos", Kind: KindAlreadyExists, Err: cause}

		Convey("Error should name the operation, bucket and kind", func() {
			So(err.Error(), ShouldEqual, `create bucket "photos": already exists: boom`)
		})

		Convey("It should unwrap to its cause", func() {
			So(errors.Is(err, cause), ShouldBeTrue)
		})

		Convey("KindOf should see through wrapping", func() {
			wrapped := fmt.Errorf("cli: %w", err)
			So(KindOf(wrapped), ShouldEqual, KindAlreadyExists)
			So(IsKind(wrapped, KindAlreadyExists), ShouldBeTrue)
			So(IsKind(wrapped, KindNotFound), ShouldBeFalse)
		})

		Convey("Plain errors have no kind", func() {
			So(KindOf(cause), ShouldEqual, KindUnknown)
			So(IsKind(nil, KindUnknown), ShouldBeFalse)
		})

		Convey("Unnamed kinds still print", func() {
			So(Kind(99).String(), ShouldEqual, "kind(99)")
		})
	})
}
