package project

import (
	"github.com/opticlab/stereovision/disparity"
	"github.com/opticlab/stereovision/pointcloud"
	"github.com/opticlab/stereovision/rectify"
	"github.com/opticlab/stereovision/simage"
)

// minDisparity is the smallest disparity treated as a real measurement.
// Zero and near-zero disparities mean effectively infinite depth; they
// degrade to invalid cells rather than raising an error.
const minDisparity = 1e-6

// DepthImage triangulates each valid disparity cell into metric depth:
// depth = focal * baseline / disparity, using the rectified virtual focal
// length and the rig baseline, both in the rectified geometry.
func DepthImage(disp *disparity.Map, geom *rectify.RectifiedGeometry) (*DepthMap, error) {
	if err := checkDims(disp, geom); err != nil {
		return nil, err
	}
	fB := geom.Virtual.Fx * geom.Baseline
	out := newDepthMap(disp.Width(), disp.Height())
	for y := 0; y < disp.Height(); y++ {
		for x := 0; x < disp.Width(); x++ {
			d, ok := disp.At(x, y)
			if !ok || d < minDisparity {
				continue
			}
			out.set(x, y, float32(fB/d))
		}
	}
	return out, nil
}

// CloudOption configures ToPointCloud.
type CloudOption func(*cloudConfig)

type cloudConfig struct {
	intensitySource *simage.Gray
}

// WithIntensity attaches per point intensity sampled from the rectified
// left frame.
func WithIntensity(rectifiedLeft *simage.Gray) CloudOption {
	return func(c *cloudConfig) {
		c.intensitySource = rectifiedLeft
	}
}

// ToPointCloud reprojects each valid disparity cell into a 3D point in the
// rectified left camera frame, in meters. Invalid cells emit no point, so
// the cloud is variable length in raster order.
func ToPointCloud(disp *disparity.Map, geom *rectify.RectifiedGeometry, opts ...CloudOption) (pointcloud.PointCloud, error) {
	if err := checkDims(disp, geom); err != nil {
		return nil, err
	}
	var cfg cloudConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.intensitySource != nil {
		if err := checkImageDims(cfg.intensitySource, geom); err != nil {
			return nil, err
		}
	}

	fB := geom.Virtual.Fx * geom.Baseline
	cloud := pointcloud.NewWithPrealloc(disp.ValidCount())
	for y := 0; y < disp.Height(); y++ {
		for x := 0; x < disp.Width(); x++ {
			d, ok := disp.At(x, y)
			if !ok || d < minDisparity {
				continue
			}
			z := fB / d
			px, py, pz := geom.Virtual.PixelToPoint(float64(x), float64(y), z)
			var data pointcloud.Data
			if cfg.intensitySource != nil {
				data = pointcloud.NewIntensityData(float64(cfg.intensitySource.GetXY(x, y)))
			} else {
				data = pointcloud.NewBasicData()
			}
			cloud.Append(pointcloud.NewVector(px, py, pz), data)
		}
	}
	return cloud, nil
}

func checkDims(disp *disparity.Map, geom *rectify.RectifiedGeometry) error {
	if disp.Width() != geom.Virtual.Width || disp.Height() != geom.Virtual.Height {
		return &simage.SizeMismatchError{
			GotWidth: disp.Width(), GotHeight: disp.Height(),
			WantWidth: geom.Virtual.Width, WantHeight: geom.Virtual.Height,
		}
	}
	return nil
}

func checkImageDims(img *simage.Gray, geom *rectify.RectifiedGeometry) error {
	if img.Width() != geom.Virtual.Width || img.Height() != geom.Virtual.Height {
		return &simage.SizeMismatchError{
			GotWidth: img.Width(), GotHeight: img.Height(),
			WantWidth: geom.Virtual.Width, WantHeight: geom.Virtual.Height,
		}
	}
	return nil
}
