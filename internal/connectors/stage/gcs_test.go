package stage

import "testing"

func TestSplitURI(t *testing.T) {
	cases := []struct {
		uri     string
		bucket  string
		prefix  string
		wantErr bool
	}{
		{uri: "gs://stage-bucket/app_logs/checkout/2025-06-01/08-00/", bucket: "stage-bucket", prefix: "app_logs/checkout/2025-06-01/08-00/"},
		{uri: "gs://stage-bucket", bucket: "stage-bucket", prefix: ""},
		{uri: "s3://other/bucket", wantErr: true},
		{uri: "", wantErr: true},
	}
	for _, tc := range cases {
		bucket, prefix, err := SplitURI(tc.uri)
		if tc.wantErr {
			if err == nil {
				t.Errorf("SplitURI(%q) expected error", tc.uri)
			}
			continue
		}
		if err != nil {
			t.Errorf("SplitURI(%q): %v", tc.uri, err)
			continue
		}
		if bucket != tc.bucket || prefix != tc.prefix {
			t.Errorf("SplitURI(%q) = (%q, %q), want (%q, %q)", tc.uri, bucket, prefix, tc.bucket, tc.prefix)
		}
	}
}
